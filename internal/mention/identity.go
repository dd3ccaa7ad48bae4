// Package mention implements @-mention support for review comments: the
// profile index used for autocomplete, detection of the token being typed,
// keyboard handling of the suggestion list, caret geometry, rendering of
// finished mentions, and extraction of mentioned users for notification.
//
// Text offsets throughout the package are rune offsets.
package mention

import "context"

// UserIdentity is a directory entry. It is never mutated by this package.
type UserIdentity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Directory lists the user profiles that can be mentioned.
type Directory interface {
	ListUserProfiles(ctx context.Context) ([]UserIdentity, error)
}

// DirectoryFunc adapts a function to Directory.
type DirectoryFunc func(ctx context.Context) ([]UserIdentity, error)

func (f DirectoryFunc) ListUserProfiles(ctx context.Context) ([]UserIdentity, error) {
	return f(ctx)
}
