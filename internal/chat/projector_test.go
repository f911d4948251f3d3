package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstlabs/prepdesk/internal/pubsub"
	"github.com/nstlabs/prepdesk/internal/store"
)

// capturingPublisher implements pubsub.Publisher and records everything.
type capturingPublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (p *capturingPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturingPublisher) Close() error {
	return nil
}

func (p *capturingPublisher) onTopic(topic string) []pubsub.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pubsub.Message
	for _, msg := range p.messages {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func TestProjector_PublicAppendPublishesChannelEvent(t *testing.T) {
	tree := store.NewMemoryTree()
	publisher := &capturingPublisher{}
	projector := NewProjector(tree, publisher)
	ctx := context.Background()

	require.NoError(t, projector.Start(ctx))
	defer projector.Shutdown()

	adapter := NewAdapter(tree)
	_, err := adapter.Append(ctx, PublicChannel(), ChatMessage{UserID: "s1", Text: "hello", Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		for _, msg := range publisher.onTopic(TopicChannelUpdated) {
			var event channelEvent
			if json.Unmarshal(msg.Payload, &event) != nil {
				continue
			}
			if event.Channel == "public" && len(event.Messages) == 1 && event.Messages[0].Text == "hello" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestProjector_PrivateAppendPublishesSessionAndChannelEvents(t *testing.T) {
	tree := store.NewMemoryTree()
	publisher := &capturingPublisher{}
	projector := NewProjector(tree, publisher)
	ctx := context.Background()

	require.NoError(t, projector.Start(ctx))
	defer projector.Shutdown()

	adapter := NewAdapter(tree)
	_, err := adapter.Append(ctx, PrivateChannel("s1"), ChatMessage{UserID: "s1", Text: "help", Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		for _, msg := range publisher.onTopic(TopicChannelUpdated) {
			var event channelEvent
			if json.Unmarshal(msg.Payload, &event) != nil {
				continue
			}
			if event.Channel == "private" && event.StudentID == "s1" && len(event.Messages) == 1 {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		for _, msg := range publisher.onTopic(TopicSessionsUpdated) {
			var event sessionsEvent
			if json.Unmarshal(msg.Payload, &event) != nil {
				continue
			}
			if len(event.Sessions) == 1 && event.Sessions[0].StudentID == "s1" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestProjector_ExposesLiveSessionList(t *testing.T) {
	tree := store.NewMemoryTree()
	projector := NewProjector(tree, &capturingPublisher{})
	ctx := context.Background()

	require.NoError(t, projector.Start(ctx))
	defer projector.Shutdown()

	adapter := NewAdapter(tree)
	_, err := adapter.Append(ctx, PrivateChannel("s7"), ChatMessage{UserID: "s7", Text: "hi", Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		sessions := projector.Sessions().Sessions()
		return len(sessions) == 1 && sessions[0].StudentID == "s7"
	}, time.Second, 5*time.Millisecond)
}
