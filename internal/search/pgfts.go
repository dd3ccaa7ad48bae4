package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks comments on the generated fts column with ts_rank and builds
// snippets with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	q = normalize(q)

	rows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.review_id, COALESCE(c.parent_id, ''), c.author_id, u.display_name,
			ts_headline('english', c.content, query, 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>'),
			c.created_at,
			COUNT(*) OVER () AS total
		FROM comments c
		JOIN users u ON u.id = c.author_id,
			plainto_tsquery('english', $1) query
		WHERE c.fts @@ query
		  AND ($2 = '' OR c.review_id = $2)
		ORDER BY ts_rank(c.fts, query) DESC, c.created_at DESC
		LIMIT $3 OFFSET $4
	`, q.Text, q.ReviewID, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	total := 0
	for rows.Next() {
		var r Result
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &r.ReviewID, &r.ParentID, &r.AuthorID, &r.AuthorName, &r.Snippet, &createdAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		r.CreatedAt = createdAt.Unix()
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, total, nil
}
