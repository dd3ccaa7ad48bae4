package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"graphreview/api/internal/comment"
	"graphreview/api/internal/mention"
	"graphreview/api/internal/section"
)

func TestRenderThread(t *testing.T) {
	known := []mention.UserIdentity{{ID: "u_bob", Name: "Bob Lee"}}
	render := mention.NewRenderer(known).Render
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	renderThread(&buf, []comment.Comment{
		{
			ID: "c1", AuthorName: "Alice Park", Content: "cc @Bob Lee", CreatedAt: created, VoteCount: 2,
			Replies: []comment.Comment{{ID: "r1", ParentID: "c1", AuthorName: "Bob Lee", Content: "on it", CreatedAt: created}},
		},
	}, render, func(id string) bool { return id == "r1" })

	out := buf.String()
	assert.Contains(t, out, "Alice Park")
	assert.Contains(t, out, "@Bob Lee")
	assert.Contains(t, out, "2 votes")
	assert.Contains(t, out, "on it")
	assert.Equal(t, 1, strings.Count(out, "yours"))
}

func TestRenderThreadEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderThread(&buf, nil, mention.NewRenderer(nil).Render, nil)
	assert.Contains(t, buf.String(), "No comments yet.")
}

func TestRenderNotice(t *testing.T) {
	var buf bytes.Buffer
	renderNotice(&buf, section.Notice{Level: section.LevelError, Message: "Failed to post comment"})
	assert.Contains(t, buf.String(), "Failed to post comment")
}
