// Package localstore is the origin-scoped persistent key/value store shared by every tab of
// the same origin, plus its change feed.
//
// A change notification is delivered to every tab of the origin except the one that wrote it.
// Delivery is push-based and best-effort; the last writer wins and nothing is acknowledged.
package localstore

import "context"

// Change describes a single key write. Value is empty when the key was deleted.
type Change struct {
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Source string `json:"source"`
}

// Deleted reports whether the change removed the key.
func (c Change) Deleted() bool { return c.Value == "" }

// Store is the view of the local store held by one tab.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error

	// Watch streams changes written by other tabs until ctx is done.
	Watch(ctx context.Context) (<-chan Change, error)
}

// watchBuffer bounds how many undelivered changes a slow watcher may hold before drops.
const watchBuffer = 64

// Origin hands out per-tab views of one origin's store.
type Origin interface {
	Tab(tabID string) Store
}

// Origins resolves an origin name (the gateway uses a per-browser device id) to its store.
type Origins func(origin string) Origin
