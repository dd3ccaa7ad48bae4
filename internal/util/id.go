package util

import (
	"strings"

	"github.com/google/uuid"
)

func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// VoteID derives the identifier of a user's vote on a comment. A user holds
// at most one vote per comment, so the pair is the key.
func VoteID(commentID, userID string) string {
	return commentID + "-" + userID
}
