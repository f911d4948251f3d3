package store

import (
	"context"
	"errors"
)

// ErrWrite marks a failed write against the underlying store. Callers can
// test for it with errors.Is and leave user input intact for a retry.
var ErrWrite = errors.New("store write failed")

// SnapshotHandler receives the full current value at a subscribed path.
// Deliveries are whole-subtree snapshots, never diffs: each handler call
// replaces whatever view the subscriber held before.
type SnapshotHandler func(ctx context.Context, snapshot any)

// Subscription represents an active live subscription on a tree path.
type Subscription struct {
	ID   string
	Path string

	cancel context.CancelFunc
}

// Unsubscribe stops delivery. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

// Tree is a path-addressed, live-subscribable key-value tree. Paths are
// slash-separated segments ("chats/s1/messages"). Values are documents
// (map-shaped) or scalars nested inside them.
//
// Subscribe delivers the current snapshot at the path immediately, then a
// fresh full snapshot after every mutation anywhere in that subtree.
type Tree interface {
	// Subscribe registers a handler for live snapshots of the subtree at path.
	Subscribe(ctx context.Context, path string, handler SnapshotHandler) (*Subscription, error)

	// Get returns the current value at path, or nil if the path is empty.
	Get(ctx context.Context, path string) (any, error)

	// Push appends value under a fresh unique child key and returns the key.
	Push(ctx context.Context, path string, value any) (string, error)

	// Set replaces the value at path.
	Set(ctx context.Context, path string, value any) error

	// Update merges the partial document into the value at path, leaving
	// unnamed fields untouched.
	Update(ctx context.Context, path string, partial map[string]any) error

	// Remove deletes the value at path permanently. Removing an absent path
	// is a no-op.
	Remove(ctx context.Context, path string) error
}
