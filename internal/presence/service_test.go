package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstlabs/prepdesk/internal/pubsub"
)

// mockPublisher implements pubsub.Publisher for testing.
type mockPublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

func (m *mockPublisher) getMessages() []pubsub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pubsub.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func connectEvent(userID string) pubsub.Message {
	return pubsub.Message{UserID: userID}
}

func TestService_UserComesOnline(t *testing.T) {
	publisher := &mockPublisher{}
	svc := NewService(publisher, WithOfflineDebounce(0))

	require.NoError(t, svc.handleConnected(context.Background(), connectEvent("user1")))

	assert.Equal(t, []string{"user1"}, svc.Online())
	assert.True(t, svc.IsOnline("user1"))

	messages := publisher.getMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, TopicUpdated, messages[0].Topic)

	var payload struct {
		Users []string `json:"users"`
	}
	require.NoError(t, json.Unmarshal(messages[0].Payload, &payload))
	assert.Equal(t, []string{"user1"}, payload.Users)
}

func TestService_SecondConnectionDoesNotRepublish(t *testing.T) {
	publisher := &mockPublisher{}
	svc := NewService(publisher, WithOfflineDebounce(0))
	ctx := context.Background()

	require.NoError(t, svc.handleConnected(ctx, connectEvent("user1")))
	require.NoError(t, svc.handleConnected(ctx, connectEvent("user1")))

	assert.Equal(t, []string{"user1"}, svc.Online())
	assert.Len(t, publisher.getMessages(), 1)
}

func TestService_StaysOnlineWhileOneConnectionRemains(t *testing.T) {
	publisher := &mockPublisher{}
	svc := NewService(publisher, WithOfflineDebounce(0))
	ctx := context.Background()

	require.NoError(t, svc.handleConnected(ctx, connectEvent("user1")))
	require.NoError(t, svc.handleConnected(ctx, connectEvent("user1")))
	require.NoError(t, svc.handleDisconnected(ctx, connectEvent("user1")))

	assert.True(t, svc.IsOnline("user1"))
}

func TestService_GoesOfflineImmediatelyWithoutDebounce(t *testing.T) {
	publisher := &mockPublisher{}
	svc := NewService(publisher, WithOfflineDebounce(0))
	ctx := context.Background()

	require.NoError(t, svc.handleConnected(ctx, connectEvent("user1")))
	require.NoError(t, svc.handleDisconnected(ctx, connectEvent("user1")))

	assert.Eventually(t, func() bool {
		return !svc.IsOnline("user1") && len(publisher.getMessages()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, svc.Online())
}

func TestService_ReconnectDuringDebounceStaysOnline(t *testing.T) {
	publisher := &mockPublisher{}
	svc := NewService(publisher, WithOfflineDebounce(100*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, svc.handleConnected(ctx, connectEvent("user1")))
	require.NoError(t, svc.handleDisconnected(ctx, connectEvent("user1")))
	// Page reload: reconnect inside the debounce window.
	require.NoError(t, svc.handleConnected(ctx, connectEvent("user1")))

	time.Sleep(200 * time.Millisecond)
	assert.True(t, svc.IsOnline("user1"))

	// Only the two "came online" publishes, never an offline flap.
	for _, msg := range publisher.getMessages() {
		var payload struct {
			Users []string `json:"users"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Contains(t, payload.Users, "user1")
	}
}

func TestService_OnlineListIsSorted(t *testing.T) {
	svc := NewService(&mockPublisher{}, WithOfflineDebounce(0))
	ctx := context.Background()

	require.NoError(t, svc.handleConnected(ctx, connectEvent("zed")))
	require.NoError(t, svc.handleConnected(ctx, connectEvent("amy")))
	require.NoError(t, svc.handleConnected(ctx, connectEvent("mia")))

	assert.Equal(t, []string{"amy", "mia", "zed"}, svc.Online())
}
