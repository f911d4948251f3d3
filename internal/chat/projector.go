package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nstlabs/prepdesk/internal/pubsub"
	"github.com/nstlabs/prepdesk/internal/store"
)

// Projector watches the chat subtrees and republishes every change as a full
// projection on the message bus. Downstream consumers never see deltas; each
// event replaces the previous state for its channel.
type Projector struct {
	tree      store.Tree
	publisher pubsub.Publisher
	logger    *slog.Logger

	public   *Adapter
	sessions *SessionList
	sub      *store.Subscription
}

// NewProjector wires the projector over the tree and bus.
func NewProjector(tree store.Tree, pub pubsub.Publisher) *Projector {
	p := &Projector{
		tree:      tree,
		publisher: pub,
		logger:    slog.Default().With("service", "chat_projector"),
	}
	p.public = NewAdapter(tree, WithOnChange(p.publishChannel))
	p.sessions = NewSessionList(tree, WithSessionsChange(p.publishSessions))
	return p
}

// Start opens the live subscriptions: the public channel, the admin inbox,
// and the private channel root for per-student message events.
func (p *Projector) Start(ctx context.Context) error {
	if err := p.public.Subscribe(ctx, PublicChannel()); err != nil {
		return err
	}
	if err := p.sessions.Start(ctx); err != nil {
		return err
	}
	sub, err := p.tree.Subscribe(ctx, privateRoot, p.handlePrivateSnapshot)
	if err != nil {
		return fmt.Errorf("subscribe private channels: %w", err)
	}
	p.sub = sub
	return nil
}

// Sessions exposes the live inbox for request handlers.
func (p *Projector) Sessions() *SessionList {
	return p.sessions
}

func (p *Projector) publishChannel(ch Channel, messages []ChatMessage) {
	event := channelEvent{Channel: "public", Messages: messages}
	if !ch.IsPublic() {
		event.Channel = "private"
		event.StudentID = ch.StudentID()
	}
	p.publish(TopicChannelUpdated, event)
}

func (p *Projector) publishSessions(sessions []ChatSession) {
	p.publish(TopicSessionsUpdated, sessionsEvent{Sessions: sessions})
}

// handlePrivateSnapshot fans a private-root snapshot out into one channel
// event per student. Every student's list is republished on any change; the
// full-projection contract makes that redundancy harmless.
func (p *Projector) handlePrivateSnapshot(_ context.Context, snapshot any) {
	root, ok := snapshot.(*store.Object)
	if !ok || root == nil {
		return
	}
	for _, studentID := range root.Keys() {
		entry, _ := root.Get(studentID)
		node, ok := entry.(*store.Object)
		if !ok || node == nil {
			continue
		}
		raw, _ := node.Get("messages")
		messages, err := decodeMessages(raw)
		if err != nil {
			p.logger.Error("Failed to decode private channel", "student_id", studentID, "error", err)
			continue
		}
		sortMessages(messages)
		p.publishChannel(PrivateChannel(studentID), messages)
	}
}

func (p *Projector) publish(topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to encode projection event", "topic", topic, "error", err)
		return
	}
	msg := pubsub.Message{Topic: topic, Payload: payload}
	if err := p.publisher.Publish(context.Background(), msg); err != nil {
		p.logger.Error("Failed to publish projection event", "topic", topic, "error", err)
	}
}

// Shutdown tears down the live subscriptions.
func (p *Projector) Shutdown() {
	if p.sub != nil {
		p.sub.Unsubscribe()
	}
	p.public.Unsubscribe()
	p.sessions.Shutdown()
}
