package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// treeTable is the SurrealDB table backing the tree. Every stored node is
// one record: a document value at a slash-separated path. seq preserves
// arrival order for snapshot assembly.
const treeTable = "tree"

type treeRecord struct {
	ID    *models.RecordID `json:"id,omitempty"`
	Path  string           `json:"path"`
	Value map[string]any   `json:"value"`
	Seq   int64            `json:"seq"`
}

// NewSurrealDB creates and configures a new SurrealDB connection.
func NewSurrealDB(ctx context.Context, url, user, pass, ns, dbName string) (*surrealdb.DB, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to surrealdb: %w", err)
	}

	authData := &surrealdb.Auth{
		Username: user,
		Password: pass,
	}

	if _, err = db.SignIn(ctx, authData); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	if err = db.Use(ctx, ns, dbName); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/db: %w", err)
	}

	slog.Info("Successfully signed in to SurrealDB")
	return db, nil
}

// SurrealTree is the durable Tree implementation, using SurrealDB live
// queries for change notifications.
type SurrealTree struct {
	db   *surrealdb.DB
	subs sync.Map // subID -> *surrealSub
}

type surrealSub struct {
	id      string
	path    string
	handler SnapshotHandler
	events  chan any
	ctx     context.Context
}

// NewSurrealTree creates a Tree backed by the given SurrealDB connection.
func NewSurrealTree(db *surrealdb.DB) *SurrealTree {
	return &SurrealTree{db: db}
}

// Subscribe opens a live query covering the subtree at path and delivers a
// full re-read snapshot on every change. The current snapshot is delivered
// first.
func (t *SurrealTree) Subscribe(ctx context.Context, path string, handler SnapshotHandler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	path = cleanPath(path)
	subCtx, cancel := context.WithCancel(ctx)
	sub := &surrealSub{
		id:      uuid.NewString(),
		path:    path,
		handler: handler,
		events:  make(chan any, 64),
		ctx:     subCtx,
	}

	query := "LIVE SELECT * FROM " + treeTable + " WHERE path = $path OR string::starts_with(path, $prefix)"
	params := map[string]any{"path": path, "prefix": path + "/"}

	results, err := surrealdb.Query[any](ctx, t.db, query, params)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start live query: %w", err)
	}
	liveID, err := liveQueryID(results)
	if err != nil {
		cancel()
		return nil, err
	}

	notifications, err := t.db.LiveNotifications(liveID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to get notification channel: %w", err)
	}

	t.subs.Store(sub.id, sub)
	go t.pump(sub)
	go t.listen(sub, liveID, notifications)

	// Initial snapshot, matching the memory tree's subscribe contract.
	if snap, err := t.Get(ctx, path); err == nil {
		sub.enqueue(snap)
	}

	return &Subscription{ID: sub.id, Path: path, cancel: cancel}, nil
}

// listen watches the SDK notification channel and triggers snapshot
// re-reads. The notification payload itself is discarded: the contract is
// full-subtree redelivery, not diffs.
func (t *SurrealTree) listen(sub *surrealSub, liveID string, notifications <-chan connection.Notification) {
	defer func() {
		t.subs.Delete(sub.id)

		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		if err := t.db.CloseLiveNotifications(liveID); err != nil {
			slog.Warn("Failed to close live notifications", "error", err, "liveQueryID", liveID)
		}
		if _, err := surrealdb.Query[any](cleanupCtx, t.db, "KILL $liveQueryID", map[string]any{"liveQueryID": liveID}); err != nil {
			slog.Warn("Failed to kill live query", "error", err, "liveQueryID", liveID)
		}
	}()

	for {
		select {
		case <-sub.ctx.Done():
			return
		case _, ok := <-notifications:
			if !ok {
				slog.Debug("Live query notification channel closed", "subID", sub.id)
				return
			}
			snap, err := t.Get(sub.ctx, sub.path)
			if err != nil {
				slog.Error("Failed to re-read subtree after change", "subID", sub.id, "path", sub.path, "error", err)
				continue
			}
			sub.enqueue(snap)
		}
	}
}

func (t *SurrealTree) pump(sub *surrealSub) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in tree snapshot handler", "subID", sub.id, "path", sub.path, "panic", r)
		}
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

func (s *surrealSub) enqueue(snap any) {
	select {
	case s.events <- snap:
	default:
		slog.Warn("Tree subscriber buffer full, dropping snapshot", "subID", s.id, "path", s.path)
	}
}

// Get re-reads and assembles the subtree at path in arrival (seq) order.
func (t *SurrealTree) Get(ctx context.Context, path string) (any, error) {
	path = cleanPath(path)
	query := "SELECT * FROM " + treeTable + " WHERE path = $path OR string::starts_with(path, $prefix) ORDER BY seq ASC"
	params := map[string]any{"path": path, "prefix": path + "/"}

	records, err := querySlice[treeRecord](ctx, t.db, query, params)
	if err != nil {
		return nil, err
	}
	return assemble(records, path)
}

// Push appends value under a fresh unique child key and returns the key.
func (t *SurrealTree) Push(ctx context.Context, path string, value any) (string, error) {
	key := uuid.NewString()
	if err := t.Set(ctx, childPath(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Set replaces the value at path with the given document.
func (t *SurrealTree) Set(ctx context.Context, path string, value any) error {
	path = cleanPath(path)
	if path == "" {
		return errors.New("path must not be empty")
	}
	doc, err := toDocument(value)
	if err != nil {
		return err
	}

	query := `
		DELETE FROM ` + treeTable + ` WHERE path = $path OR string::starts_with(path, $prefix);
		CREATE ` + treeTable + ` CONTENT { path: $path, value: $value, seq: $seq };
	`
	params := map[string]any{
		"path":   path,
		"prefix": path + "/",
		"value":  doc,
		"seq":    time.Now().UnixNano(),
	}
	if _, err := surrealdb.Query[any](ctx, t.db, query, params); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrWrite, path, err)
	}
	return nil
}

// Update merges partial into the document at path, creating it if absent.
func (t *SurrealTree) Update(ctx context.Context, path string, partial map[string]any) error {
	path = cleanPath(path)
	if path == "" {
		return errors.New("path must not be empty")
	}

	updated, err := querySlice[treeRecord](ctx, t.db,
		"UPDATE "+treeTable+" MERGE { value: $partial } WHERE path = $path RETURN AFTER",
		map[string]any{"path": path, "partial": partial})
	if err != nil {
		return fmt.Errorf("%w: update %s: %v", ErrWrite, path, err)
	}
	if len(updated) > 0 {
		return nil
	}

	// No record yet at this path; an update on an absent path creates it.
	if err := surrealCreate(ctx, t.db, path, partial); err != nil {
		return fmt.Errorf("%w: update %s: %v", ErrWrite, path, err)
	}
	return nil
}

// Remove deletes the subtree at path permanently. Absent paths are a no-op.
func (t *SurrealTree) Remove(ctx context.Context, path string) error {
	path = cleanPath(path)
	if path == "" {
		return errors.New("path must not be empty")
	}
	err := surrealExecute(ctx, t.db,
		"DELETE FROM "+treeTable+" WHERE path = $path OR string::starts_with(path, $prefix)",
		map[string]any{"path": path, "prefix": path + "/"})
	if err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrWrite, path, err)
	}
	return nil
}

// assemble rebuilds the nested snapshot for base from flat path records.
func assemble(records []treeRecord, base string) (any, error) {
	root := NewObject()
	for _, rec := range records {
		value, err := Normalize(rec.Value)
		if err != nil {
			return nil, err
		}
		if rec.Path == base {
			doc, ok := value.(*Object)
			if !ok {
				continue
			}
			for _, k := range doc.Keys() {
				v, _ := doc.Get(k)
				root.Set(k, v)
			}
			continue
		}

		rel := strings.TrimPrefix(rec.Path, base+"/")
		if base == "" {
			rel = rec.Path
		}
		segs := strings.Split(rel, "/")
		cur := root
		for _, seg := range segs[:len(segs)-1] {
			next, ok := cur.Get(seg)
			child, isObj := next.(*Object)
			if !ok || !isObj {
				child = NewObject()
				cur.Set(seg, child)
			}
			cur = child
		}

		// A record at an intermediate path may arrive after records below
		// it (a metadata write following a message push). Merge into the
		// assembled branch instead of wiping it.
		last := segs[len(segs)-1]
		if doc, ok := value.(*Object); ok {
			if existing, found := cur.Get(last); found {
				if node, isObj := existing.(*Object); isObj {
					for _, k := range doc.Keys() {
						v, _ := doc.Get(k)
						node.Set(k, v)
					}
					continue
				}
			}
		}
		cur.Set(last, value)
	}

	if root.Len() == 0 {
		return nil, nil
	}
	return root, nil
}

// toDocument coerces a value into the map shape stored in a tree record.
func toDocument(value any) (map[string]any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("unsupported tree value %T: %w", value, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tree values must be documents, got %T", value)
	}
	return doc, nil
}

func surrealCreate(ctx context.Context, db *surrealdb.DB, path string, doc map[string]any) error {
	return surrealExecute(ctx, db,
		"CREATE "+treeTable+" CONTENT { path: $path, value: $value, seq: $seq }",
		map[string]any{"path": path, "value": doc, "seq": time.Now().UnixNano()})
}

// querySlice executes a raw SurrealQL query with parameters and returns
// multiple results unmarshaled into T.
func querySlice[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]T, error) {
	queryResults, err := surrealdb.Query[[]T](ctx, db, query, params)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	if len(*queryResults) == 0 {
		return nil, nil
	}
	return (*queryResults)[0].Result, nil
}

// surrealExecute runs a query that doesn't return rows.
func surrealExecute(ctx context.Context, db *surrealdb.DB, query string, params map[string]any) error {
	if _, err := surrealdb.Query[any](ctx, db, query, params); err != nil {
		return fmt.Errorf("query execution failed: %w", err)
	}
	return nil
}

// liveQueryID extracts the live query UUID from a LIVE SELECT result.
func liveQueryID(results *[]surrealdb.QueryResult[any]) (string, error) {
	if results == nil || len(*results) == 0 {
		return "", errors.New("live query returned no results")
	}
	result := (*results)[0]
	if result.Status != "OK" {
		return "", fmt.Errorf("live query failed with status: %s", result.Status)
	}

	switch v := result.Result.(type) {
	case string:
		return v, nil
	case models.UUID:
		return v.String(), nil
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return id, nil
		}
		if id, ok := v["id"].(models.UUID); ok {
			return id.String(), nil
		}
		return "", fmt.Errorf("live query result map does not contain 'id' field: %+v", v)
	default:
		return "", fmt.Errorf("unexpected live query result type: %T", result.Result)
	}
}
