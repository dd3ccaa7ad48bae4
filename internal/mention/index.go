package mention

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Index is the in-memory set of identities a comment section suggests from.
// It is read-only after construction and safe for concurrent use.
type Index struct {
	users []UserIdentity
}

func NewIndex(users []UserIdentity) *Index {
	copied := make([]UserIdentity, len(users))
	copy(copied, users)
	return &Index{users: copied}
}

// LoadIndex fetches the directory once. A failed fetch yields an empty index
// so suggestions disappear but posting keeps working.
func LoadIndex(ctx context.Context, dir Directory, logger zerolog.Logger) *Index {
	if dir == nil {
		return NewIndex(nil)
	}
	users, err := dir.ListUserProfiles(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("mention index load failed, suggestions disabled")
		return NewIndex(nil)
	}
	return NewIndex(users)
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.users)
}

// Users returns a copy of every identity in index order.
func (ix *Index) Users() []UserIdentity {
	if ix == nil {
		return nil
	}
	out := make([]UserIdentity, len(ix.users))
	copy(out, ix.users)
	return out
}

// Filter returns identities whose name or email contains query, ignoring
// case. An empty query matches everyone.
func (ix *Index) Filter(query string) []UserIdentity {
	if ix == nil {
		return nil
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	matches := make([]UserIdentity, 0, len(ix.users))
	for _, user := range ix.users {
		if needle == "" ||
			strings.Contains(strings.ToLower(user.Name), needle) ||
			strings.Contains(strings.ToLower(user.Email), needle) {
			matches = append(matches, user)
		}
	}
	return matches
}
