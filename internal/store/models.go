package store

import "time"

type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
}

// Comment is one row of comments joined with its author and vote totals as
// seen by a single viewer.
type Comment struct {
	ID         string
	ReviewID   string
	ParentID   *string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
	VoteCount  int
	// ViewerVote is "up", "down" or empty.
	ViewerVote string
}

type Vote struct {
	ID        string
	CommentID string
	UserID    string
	VoteType  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommentRecord is the flattened row fed to the search index.
type CommentRecord struct {
	ID         string
	ReviewID   string
	ParentID   string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}
