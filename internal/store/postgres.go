package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrReferenceNotFound reports an insert that points at a user or comment
// that does not exist.
var ErrReferenceNotFound = errors.New("referenced row not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, email, created_at
		FROM users
		ORDER BY display_name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, created_at FROM users WHERE id=$1
	`, userID).Scan(&u.ID, &u.DisplayName, &u.Email, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, created_at FROM users WHERE LOWER(email)=LOWER($1)
	`, strings.TrimSpace(email)).Scan(&u.ID, &u.DisplayName, &u.Email, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// EnsureUser returns the user with the given email, creating it when absent.
func (s *PostgresStore) EnsureUser(ctx context.Context, user User) (User, error) {
	existing, err := s.GetUserByEmail(ctx, user.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, display_name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name=EXCLUDED.display_name
		RETURNING id, display_name, email, created_at
	`, user.ID, user.DisplayName, strings.TrimSpace(user.Email)).Scan(&user.ID, &user.DisplayName, &user.Email, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// ListComments returns every comment of a review with vote totals and the
// viewer's own vote. Top-level comments come newest first, followed by all
// replies oldest first.
func (s *PostgresStore) ListComments(ctx context.Context, reviewID, viewerID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.review_id, c.parent_id, c.author_id, u.display_name, c.content, c.created_at,
			COALESCE(v.total, 0)::int,
			COALESCE(mine.vote_type, '')
		FROM comments c
		JOIN users u ON u.id = c.author_id
		LEFT JOIN (
			SELECT comment_id, COUNT(*) AS total
			FROM comment_votes
			GROUP BY comment_id
		) v ON v.comment_id = c.id
		LEFT JOIN comment_votes mine ON mine.comment_id = c.id AND mine.user_id = $2
		WHERE c.review_id = $1
		ORDER BY
			(c.parent_id IS NOT NULL) ASC,
			CASE WHEN c.parent_id IS NULL THEN c.created_at END DESC,
			c.created_at ASC,
			c.id ASC
	`, reviewID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID, viewerID string) (Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.review_id, c.parent_id, c.author_id, u.display_name, c.content, c.created_at,
			(SELECT COUNT(*) FROM comment_votes v WHERE v.comment_id = c.id)::int,
			COALESCE((SELECT vote_type FROM comment_votes m WHERE m.comment_id = c.id AND m.user_id = $2), '')
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id = $1
	`, commentID, viewerID)
	item, err := scanComment(row)
	if err != nil {
		return Comment{}, err
	}
	return item, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (Comment, error) {
	var item Comment
	var parentID sql.NullString
	if err := row.Scan(
		&item.ID, &item.ReviewID, &parentID, &item.AuthorID, &item.AuthorName,
		&item.Content, &item.CreatedAt, &item.VoteCount, &item.ViewerVote,
	); err != nil {
		return Comment{}, fmt.Errorf("scan comment: %w", err)
	}
	if parentID.Valid {
		item.ParentID = &parentID.String
	}
	return item, nil
}

// InsertComment stores a comment and returns it with its author name and
// creation time filled in.
func (s *PostgresStore) InsertComment(ctx context.Context, item Comment) (Comment, error) {
	err := s.db.QueryRowContext(ctx, `
		WITH inserted AS (
			INSERT INTO comments (id, review_id, parent_id, author_id, content)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING author_id, created_at
		)
		SELECT i.created_at, u.display_name
		FROM inserted i
		JOIN users u ON u.id = i.author_id
	`, item.ID, item.ReviewID, item.ParentID, item.AuthorID, item.Content).Scan(&item.CreatedAt, &item.AuthorName)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", mapConstraint(err))
	}
	item.VoteCount = 0
	item.ViewerVote = ""
	return item, nil
}

// DeleteComment removes a comment; replies and votes go with it.
func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows: %w", err)
	}
	return affected > 0, nil
}

// UpsertVote records the user's vote, replacing one of the other type.
func (s *PostgresStore) UpsertVote(ctx context.Context, v Vote) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO comment_votes (id, comment_id, user_id, vote_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (comment_id, user_id)
		DO UPDATE SET vote_type=EXCLUDED.vote_type, updated_at=NOW()
	`, v.ID, v.CommentID, v.UserID, v.VoteType); err != nil {
		return fmt.Errorf("upsert comment vote: %w", mapConstraint(err))
	}
	return nil
}

func (s *PostgresStore) DeleteVote(ctx context.Context, commentID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM comment_votes WHERE comment_id=$1 AND user_id=$2
	`, commentID, userID)
	if err != nil {
		return false, fmt.Errorf("delete comment vote: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment vote rows: %w", err)
	}
	return affected > 0, nil
}

// ListCommentRecords returns every comment for search reindexing.
func (s *PostgresStore) ListCommentRecords(ctx context.Context) ([]CommentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.review_id, COALESCE(c.parent_id, ''), c.author_id, u.display_name, c.content, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load comment records: %w", err)
	}
	defer rows.Close()

	records := make([]CommentRecord, 0)
	for rows.Next() {
		var r CommentRecord
		if err := rows.Scan(&r.ID, &r.ReviewID, &r.ParentID, &r.AuthorID, &r.AuthorName, &r.Content, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comment records: %w", err)
	}
	return records, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: %s", ErrReferenceNotFound, pgErr.ConstraintName)
	}
	return err
}
