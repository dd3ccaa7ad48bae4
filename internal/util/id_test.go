package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	pattern := regexp.MustCompile(`^cmt_[0-9a-f]{32}$`)

	id := NewID("cmt")
	assert.True(t, pattern.MatchString(id), "NewID(cmt) = %q", id)
	assert.NotEqual(t, id, NewID("cmt"))
	assert.Len(t, NewID(""), 32)
}

func TestVoteID(t *testing.T) {
	assert.Equal(t, "cmt_1-usr_2", VoteID("cmt_1", "usr_2"))
}
