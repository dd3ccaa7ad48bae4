package comment

import (
	"time"

	"graphreview/api/internal/vote"
)

// Comment is a review comment as one viewer sees it. Replies are populated
// only on top-level comments.
type Comment struct {
	ID              string    `json:"id"`
	ReviewID        string    `json:"reviewId"`
	ParentID        string    `json:"parentId,omitempty"`
	AuthorID        string    `json:"authorId"`
	AuthorName      string    `json:"authorName"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"createdAt"`
	VoteCount       int       `json:"voteCount"`
	CurrentUserVote vote.Type `json:"currentUserVote,omitempty"`
	Replies         []Comment `json:"replies,omitempty"`
}

func (c Comment) IsTopLevel() bool { return c.ParentID == "" }

func (c Comment) VoteState() vote.State {
	return vote.State{Count: c.VoteCount, Current: c.CurrentUserVote}
}

func (c *Comment) SetVoteState(s vote.State) {
	c.VoteCount = s.Count
	c.CurrentUserVote = s.Current
}

// Clone deep-copies the comment and its replies.
func (c Comment) Clone() Comment {
	out := c
	if c.Replies != nil {
		out.Replies = make([]Comment, len(c.Replies))
		for i, r := range c.Replies {
			out.Replies[i] = r.Clone()
		}
	}
	return out
}

// Nest groups a flat list into top-level comments with their replies.
// Top-level order is kept; replies are appended in input order. Replies whose
// parent is missing or is itself a reply are dropped.
func Nest(flat []Comment) []Comment {
	roots := make([]Comment, 0, len(flat))
	index := make(map[string]int, len(flat))
	for _, c := range flat {
		if !c.IsTopLevel() {
			continue
		}
		c.Replies = nil
		index[c.ID] = len(roots)
		roots = append(roots, c)
	}
	for _, c := range flat {
		if c.IsTopLevel() {
			continue
		}
		i, ok := index[c.ParentID]
		if !ok {
			continue
		}
		c.Replies = nil
		roots[i].Replies = append(roots[i].Replies, c)
	}
	return roots
}
