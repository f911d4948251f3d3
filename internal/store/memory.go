package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryTree is the in-process Tree implementation. It backs tests and
// single-node deployments; SurrealTree is the durable equivalent.
type MemoryTree struct {
	mu   sync.Mutex
	root *Object
	subs map[string]*memSub
}

type memSub struct {
	id      string
	path    string
	handler SnapshotHandler
	events  chan any
	ctx     context.Context
}

// NewMemoryTree creates an empty in-memory tree.
func NewMemoryTree() *MemoryTree {
	return &MemoryTree{
		root: NewObject(),
		subs: make(map[string]*memSub),
	}
}

// Subscribe registers a live snapshot handler for the subtree at path.
// The current snapshot is delivered first, then one per mutation.
func (t *MemoryTree) Subscribe(ctx context.Context, path string, handler SnapshotHandler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memSub{
		id:      uuid.NewString(),
		path:    cleanPath(path),
		handler: handler,
		events:  make(chan any, 64),
		ctx:     subCtx,
	}

	t.mu.Lock()
	t.subs[sub.id] = sub
	sub.enqueue(t.snapshotAt(sub.path))
	t.mu.Unlock()

	go t.pump(sub)

	return &Subscription{ID: sub.id, Path: sub.path, cancel: cancel}, nil
}

// pump delivers snapshots to a single subscriber in order.
func (t *MemoryTree) pump(sub *memSub) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in tree snapshot handler", "subID", sub.id, "path", sub.path, "panic", r)
		}
		t.mu.Lock()
		delete(t.subs, sub.id)
		t.mu.Unlock()
	}()

	for {
		select {
		case <-sub.ctx.Done():
			return
		case snap := <-sub.events:
			sub.handler(sub.ctx, snap)
		}
	}
}

func (s *memSub) enqueue(snap any) {
	select {
	case s.events <- snap:
	default:
		// The subscriber is lagging badly; it will catch up on the next
		// mutation because every delivery is a full snapshot.
		slog.Warn("Tree subscriber buffer full, dropping snapshot", "subID", s.id, "path", s.path)
	}
}

// Get returns a deep copy of the current value at path.
func (t *MemoryTree) Get(_ context.Context, path string) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotAt(cleanPath(path)), nil
}

// Push appends value under a fresh unique child key and returns the key.
func (t *MemoryTree) Push(_ context.Context, path string, value any) (string, error) {
	key := uuid.NewString()
	if err := t.set(childPath(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Set replaces the value at path.
func (t *MemoryTree) Set(_ context.Context, path string, value any) error {
	return t.set(path, value)
}

func (t *MemoryTree) set(path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	normalized, err := Normalize(value)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent := t.descend(segs[:len(segs)-1])
	parent.Set(segs[len(segs)-1], normalized)
	t.notify(cleanPath(path))
	return nil
}

// Update merges partial into the document at path. Absent or scalar targets
// are promoted to documents first.
func (t *MemoryTree) Update(_ context.Context, path string, partial map[string]any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent := t.descend(segs[:len(segs)-1])
	last := segs[len(segs)-1]
	target, _ := parent.Get(last)
	obj, ok := target.(*Object)
	if !ok {
		obj = NewObject()
		parent.Set(last, obj)
	}

	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		normalized, err := Normalize(partial[k])
		if err != nil {
			return err
		}
		obj.Set(k, normalized)
	}

	t.notify(cleanPath(path))
	return nil
}

// Remove deletes the value at path. Removing an absent path is a no-op.
func (t *MemoryTree) Remove(_ context.Context, path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent := t.lookup(segs[:len(segs)-1])
	if parent == nil {
		return nil
	}
	last := segs[len(segs)-1]
	if _, ok := parent.Get(last); !ok {
		return nil
	}
	parent.Delete(last)
	t.notify(cleanPath(path))
	return nil
}

// descend walks the tree creating branch Objects as needed. Scalars along
// the way are replaced by branches. Callers must hold t.mu.
func (t *MemoryTree) descend(segs []string) *Object {
	cur := t.root
	for _, seg := range segs {
		next, ok := cur.Get(seg)
		child, isObj := next.(*Object)
		if !ok || !isObj {
			child = NewObject()
			cur.Set(seg, child)
		}
		cur = child
	}
	return cur
}

// lookup walks the tree without creating anything. Callers must hold t.mu.
func (t *MemoryTree) lookup(segs []string) *Object {
	cur := t.root
	for _, seg := range segs {
		next, ok := cur.Get(seg)
		if !ok {
			return nil
		}
		child, isObj := next.(*Object)
		if !isObj {
			return nil
		}
		cur = child
	}
	return cur
}

// snapshotAt deep-copies the current value at path. Callers must hold t.mu.
func (t *MemoryTree) snapshotAt(path string) any {
	if path == "" {
		return t.root.Clone()
	}
	segs := strings.Split(path, "/")
	parent := t.lookup(segs[:len(segs)-1])
	if parent == nil {
		return nil
	}
	v, ok := parent.Get(segs[len(segs)-1])
	if !ok {
		return nil
	}
	if obj, isObj := v.(*Object); isObj {
		return obj.Clone()
	}
	return v
}

// notify fans the fresh snapshot out to every subscription whose path is an
// ancestor or descendant of the mutated path. Callers must hold t.mu.
func (t *MemoryTree) notify(mutated string) {
	for _, sub := range t.subs {
		if !pathsRelated(sub.path, mutated) {
			continue
		}
		sub.enqueue(t.snapshotAt(sub.path))
	}
}

// pathsRelated reports whether one path contains the other.
func pathsRelated(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	return strings.HasPrefix(b, a+"/") || strings.HasPrefix(a, b+"/")
}

func cleanPath(path string) string {
	return strings.Trim(path, "/")
}

func childPath(path, key string) string {
	if p := cleanPath(path); p != "" {
		return p + "/" + key
	}
	return key
}

func splitPath(path string) ([]string, error) {
	p := cleanPath(path)
	if p == "" {
		return nil, errors.New("path must not be empty")
	}
	return strings.Split(p, "/"), nil
}
