package mention

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SharedDirectory caches a Directory for the lifetime of the owner (a page,
// a CLI invocation). Sections built from the same SharedDirectory load the
// profile list once; concurrent first loads share a single fetch. Failed
// loads are not cached.
type SharedDirectory struct {
	source Directory
	group  singleflight.Group

	mu     sync.RWMutex
	users  []UserIdentity
	loaded bool
}

func NewSharedDirectory(source Directory) *SharedDirectory {
	return &SharedDirectory{source: source}
}

func (d *SharedDirectory) ListUserProfiles(ctx context.Context) ([]UserIdentity, error) {
	d.mu.RLock()
	if d.loaded {
		users := cloneUsers(d.users)
		d.mu.RUnlock()
		return users, nil
	}
	d.mu.RUnlock()

	v, err, _ := d.group.Do("profiles", func() (any, error) {
		users, err := d.source.ListUserProfiles(ctx)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.users = cloneUsers(users)
		d.loaded = true
		d.mu.Unlock()
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneUsers(v.([]UserIdentity)), nil
}

// Invalidate drops the cached list; the next call fetches again.
func (d *SharedDirectory) Invalidate() {
	d.mu.Lock()
	d.users = nil
	d.loaded = false
	d.mu.Unlock()
}

func cloneUsers(users []UserIdentity) []UserIdentity {
	out := make([]UserIdentity, len(users))
	copy(out, users)
	return out
}
