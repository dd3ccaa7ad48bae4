package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMentionedIgnoresCaseAndDedupes(t *testing.T) {
	candidates := []UserIdentity{
		{ID: "u1", Name: "Jane Doe"},
		{ID: "u2", Name: "John Roe"},
		{ID: "u1", Name: "Jane Doe"},
		{ID: "u3", Name: ""},
	}

	got := Mentioned("@jane doe please check with @JANE DOE and @Someone", candidates)

	assert.Equal(t, []UserIdentity{{ID: "u1", Name: "Jane Doe"}}, got)
}

func TestMentionedNone(t *testing.T) {
	assert.Empty(t, Mentioned("no mentions here", []UserIdentity{{ID: "u1", Name: "Jane"}}))
}
