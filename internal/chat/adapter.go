package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/store"
)

// ErrNotMessageAuthor is returned when a non-admin tries to edit or remove
// someone else's message.
var ErrNotMessageAuthor = errors.New("not the message author")

// Adapter binds one channel at a time to the store: it maintains a sorted
// read projection from live snapshots and performs all message writes. Writes
// go to any channel; the projection tracks only the subscribed one.
type Adapter struct {
	tree     store.Tree
	logger   *slog.Logger
	onChange func(Channel, []ChatMessage)

	mu       sync.RWMutex
	channel  Channel
	messages []ChatMessage
	sub      *store.Subscription
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithOnChange registers a callback invoked with the fresh projection after
// every snapshot. Called from the subscription's delivery goroutine.
func WithOnChange(fn func(Channel, []ChatMessage)) AdapterOption {
	return func(a *Adapter) {
		a.onChange = fn
	}
}

// NewAdapter creates a channel adapter over the given tree.
func NewAdapter(tree store.Tree, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		tree:   tree,
		logger: slog.Default().With("service", "chat_adapter"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Subscribe switches the adapter's live projection to a channel. Any previous
// subscription is torn down and the projection is cleared before the new
// channel's snapshots start arriving, so stale messages never bleed across a
// channel switch.
func (a *Adapter) Subscribe(ctx context.Context, ch Channel) error {
	a.mu.Lock()
	if a.sub != nil {
		a.sub.Unsubscribe()
		a.sub = nil
	}
	a.channel = ch
	a.messages = nil
	a.mu.Unlock()

	sub, err := a.tree.Subscribe(ctx, ch.MessagesPath(), func(ctx context.Context, snapshot any) {
		a.handleSnapshot(ch, snapshot)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ch, err)
	}

	a.mu.Lock()
	a.sub = sub
	a.mu.Unlock()
	return nil
}

func (a *Adapter) handleSnapshot(ch Channel, snapshot any) {
	messages, err := decodeMessages(snapshot)
	if err != nil {
		a.logger.Error("Failed to decode channel snapshot", "channel", ch.String(), "error", err)
		return
	}
	sortMessages(messages)

	a.mu.Lock()
	if a.channel != ch {
		// Snapshot from a subscription that lost a race with Subscribe.
		a.mu.Unlock()
		return
	}
	a.messages = messages
	a.mu.Unlock()

	if a.onChange != nil {
		a.onChange(ch, messages)
	}
}

// Unsubscribe tears down the live subscription, if any.
func (a *Adapter) Unsubscribe() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		a.sub.Unsubscribe()
		a.sub = nil
	}
}

// Messages returns a copy of the current projection, sorted by timestamp.
func (a *Adapter) Messages() []ChatMessage {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ChatMessage, len(a.messages))
	copy(out, a.messages)
	return out
}

// Channel returns the currently subscribed channel.
func (a *Adapter) Channel() Channel {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.channel
}

// History reads a channel's messages once, without subscribing.
func (a *Adapter) History(ctx context.Context, ch Channel) ([]ChatMessage, error) {
	snap, err := a.tree.Get(ctx, ch.MessagesPath())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ch, err)
	}
	messages, err := decodeMessages(snap)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ch, err)
	}
	sortMessages(messages)
	return messages, nil
}

// Append writes a new message to a channel and returns its assigned
// identifier. The identifier is the store child key, so the same value shows
// up in every subscriber's snapshot.
func (a *Adapter) Append(ctx context.Context, ch Channel, msg ChatMessage) (string, error) {
	msg.ID = ""
	id, err := a.tree.Push(ctx, ch.MessagesPath(), msg)
	if err != nil {
		return "", writeError("append", ch, err)
	}
	return id, nil
}

// Edit replaces a message's text. Only the author or an admin may edit, and
// the message must still exist.
func (a *Adapter) Edit(ctx context.Context, actor *domain.User, ch Channel, id, text string) error {
	if err := a.authorize(ctx, actor, ch, id); err != nil {
		return err
	}
	if err := a.tree.Update(ctx, msgPath(ch, id), map[string]any{"text": text}); err != nil {
		return writeError("edit", ch, err)
	}
	return nil
}

// Remove deletes a message. Removing an already absent message succeeds.
func (a *Adapter) Remove(ctx context.Context, actor *domain.User, ch Channel, id string) error {
	err := a.authorize(ctx, actor, ch, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := a.tree.Remove(ctx, msgPath(ch, id)); err != nil {
		return writeError("remove", ch, err)
	}
	return nil
}

// authorize checks that the actor may mutate the message. Admins may mutate
// anything; everyone else only their own messages.
func (a *Adapter) authorize(ctx context.Context, actor *domain.User, ch Channel, id string) error {
	snap, err := a.tree.Get(ctx, msgPath(ch, id))
	if err != nil {
		return fmt.Errorf("load message %s: %w", id, err)
	}
	if snap == nil {
		return domain.ErrNotFound
	}
	if actor.IsAdmin() {
		return nil
	}
	var msg ChatMessage
	if err := store.Decode(snap, &msg); err != nil {
		return fmt.Errorf("decode message %s: %w", id, err)
	}
	if msg.UserID != actor.ID {
		return ErrNotMessageAuthor
	}
	return nil
}

func msgPath(ch Channel, id string) string {
	return ch.MessagesPath() + "/" + id
}

// writeError folds store failures into store.ErrWrite so callers can classify
// them without inspecting backend details.
func writeError(op string, ch Channel, err error) error {
	if errors.Is(err, store.ErrWrite) {
		return fmt.Errorf("%s %s: %w", op, ch, err)
	}
	return fmt.Errorf("%s %s: %w: %v", op, ch, store.ErrWrite, err)
}
