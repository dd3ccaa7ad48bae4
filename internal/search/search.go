package search

import "context"

// Result is a single comment hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	ReviewID   string `json:"reviewId"`
	ParentID   string `json:"parentId,omitempty"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Snippet    string `json:"snippet"`
	CreatedAt  int64  `json:"createdAt"`
}

// Query describes a search request.
type Query struct {
	Text     string
	ReviewID string // empty = all reviews
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push comments into a search index.
type Indexer interface {
	IndexComment(c CommentRecord) error
	IndexComments(cs []CommentRecord) error
	DeleteComments(ids []string) error
}

// CommentRecord is the data we index for a comment. CreatedAt is unix
// seconds so it can be sorted on.
type CommentRecord struct {
	ID         string `json:"id"`
	ReviewID   string `json:"reviewId"`
	ParentID   string `json:"parentId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"createdAt"`
}

func normalize(q Query) Query {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
