package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/store"
)

// projectionRecorder collects onChange callbacks from an Adapter.
type projectionRecorder struct {
	mu      sync.Mutex
	updates [][]ChatMessage
}

func (r *projectionRecorder) record(_ Channel, messages []ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, messages)
}

func (r *projectionRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *projectionRecorder) last() []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return nil
	}
	return r.updates[len(r.updates)-1]
}

func waitForUpdates(t *testing.T, r *projectionRecorder, n int) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return r.count() >= n
	}, time.Second, 5*time.Millisecond)
}

func TestAdapter_AppendRoundTrip(t *testing.T) {
	tree := store.NewMemoryTree()
	ctx := context.Background()
	rec := &projectionRecorder{}
	adapter := NewAdapter(tree, WithOnChange(rec.record))

	require.NoError(t, adapter.Subscribe(ctx, PublicChannel()))
	waitForUpdates(t, rec, 1)

	id, err := adapter.Append(ctx, PublicChannel(), ChatMessage{
		UserID:    "s1",
		UserName:  "Asha",
		UserRole:  domain.RoleStudent,
		Text:      "hello",
		Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	waitForUpdates(t, rec, 2)
	messages := rec.last()
	require.Len(t, messages, 1)
	assert.Equal(t, id, messages[0].ID)
	assert.Equal(t, "hello", messages[0].Text)
	assert.Equal(t, "Asha", messages[0].UserName)
}

func TestAdapter_SortsByTimestampWithIDTieBreak(t *testing.T) {
	tree := store.NewMemoryTree()
	ctx := context.Background()
	adapter := NewAdapter(tree)

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// Written out of chronological order on purpose.
	_, err := adapter.Append(ctx, PublicChannel(), ChatMessage{Text: "second", Timestamp: ts.Add(time.Minute)})
	require.NoError(t, err)
	_, err = adapter.Append(ctx, PublicChannel(), ChatMessage{Text: "first", Timestamp: ts})
	require.NoError(t, err)

	// Two messages sharing a timestamp must order by ID.
	idA, err := adapter.Append(ctx, PublicChannel(), ChatMessage{Text: "tied-a", Timestamp: ts.Add(2 * time.Minute)})
	require.NoError(t, err)
	idB, err := adapter.Append(ctx, PublicChannel(), ChatMessage{Text: "tied-b", Timestamp: ts.Add(2 * time.Minute)})
	require.NoError(t, err)

	messages, err := adapter.History(ctx, PublicChannel())
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "first", messages[0].Text)
	assert.Equal(t, "second", messages[1].Text)

	wantFirst, wantSecond := idA, idB
	if idB < idA {
		wantFirst, wantSecond = idB, idA
	}
	assert.Equal(t, wantFirst, messages[2].ID)
	assert.Equal(t, wantSecond, messages[3].ID)
}

func TestAdapter_ResubscribeClearsProjection(t *testing.T) {
	tree := store.NewMemoryTree()
	ctx := context.Background()
	adapter := NewAdapter(tree)

	_, err := adapter.Append(ctx, PublicChannel(), ChatMessage{Text: "public msg", Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	require.NoError(t, adapter.Subscribe(ctx, PublicChannel()))
	assert.Eventually(t, func() bool {
		return len(adapter.Messages()) == 1
	}, time.Second, 5*time.Millisecond)

	// Switching channels must never show the old channel's messages.
	require.NoError(t, adapter.Subscribe(ctx, PrivateChannel("s1")))
	assert.Eventually(t, func() bool {
		return len(adapter.Messages()) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, PrivateChannel("s1"), adapter.Channel())
}

func TestAdapter_EditByAuthor(t *testing.T) {
	tree := store.NewMemoryTree()
	ctx := context.Background()
	adapter := NewAdapter(tree)
	author := &domain.User{ID: "s1", Role: domain.RoleStudent}

	id, err := adapter.Append(ctx, PublicChannel(), ChatMessage{UserID: "s1", Text: "tpyo", Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	require.NoError(t, adapter.Edit(ctx, author, PublicChannel(), id, "typo"))

	messages, err := adapter.History(ctx, PublicChannel())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "typo", messages[0].Text)
	assert.Equal(t, "s1", messages[0].UserID)
}

func TestAdapter_EditByStrangerDenied(t *testing.T) {
	tree := store.NewMemoryTree()
	ctx := context.Background()
	adapter := NewAdapter(tree)
	stranger := &domain.User{ID: "s2", Role: domain.RoleStudent}

	id, err := adapter.Append(ctx, PublicChannel(), ChatMessage{UserID: "s1", Text: "mine", Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	err = adapter.Edit(ctx, stranger, PublicChannel(), id, "hijacked")
	assert.ErrorIs(t, err, ErrNotMessageAuthor)
}

func TestAdapter_AdminCanModerateAnyMessage(t *testing.T) {
	tree := store.NewMemoryTree()
	ctx := context.Background()
	adapter := NewAdapter(tree)
	admin := &domain.User{ID: "a1", Role: domain.RoleAdmin}

	id, err := adapter.Append(ctx, PublicChannel(), ChatMessage{UserID: "s1", Text: "spam", Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	require.NoError(t, adapter.Edit(ctx, admin, PublicChannel(), id, "[removed]"))
	require.NoError(t, adapter.Remove(ctx, admin, PublicChannel(), id))

	messages, err := adapter.History(ctx, PublicChannel())
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestAdapter_EditMissingMessage(t *testing.T) {
	tree := store.NewMemoryTree()
	adapter := NewAdapter(tree)
	admin := &domain.User{ID: "a1", Role: domain.RoleAdmin}

	err := adapter.Edit(context.Background(), admin, PublicChannel(), "ghost", "text")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdapter_RemoveIsIdempotent(t *testing.T) {
	tree := store.NewMemoryTree()
	ctx := context.Background()
	adapter := NewAdapter(tree)
	author := &domain.User{ID: "s1", Role: domain.RoleStudent}

	id, err := adapter.Append(ctx, PublicChannel(), ChatMessage{UserID: "s1", Text: "bye", Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	require.NoError(t, adapter.Remove(ctx, author, PublicChannel(), id))
	require.NoError(t, adapter.Remove(ctx, author, PublicChannel(), id))
	require.NoError(t, adapter.Remove(ctx, author, PublicChannel(), "never-existed"))
}
