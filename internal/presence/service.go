package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nstlabs/prepdesk/internal/pubsub"
	"github.com/nstlabs/prepdesk/internal/websocket"
)

// TopicUpdated carries the full list of online user IDs after any change.
const TopicUpdated = "presence.updated"

// OfflineDebounceDelay is how long a user must stay fully disconnected
// before going offline. Absorbs page reloads and flaky connections.
const OfflineDebounceDelay = 5 * time.Second

// Service tracks who is online from the WebSocket bridge's connect and
// disconnect events. A user is online while they hold at least one
// connection.
type Service struct {
	publisher pubsub.Publisher
	logger    *slog.Logger

	mu          sync.Mutex
	connections map[string]int
	debounce    map[string]*time.Timer
	delay       time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithOfflineDebounce overrides the offline delay. Zero disables debouncing,
// useful in tests.
func WithOfflineDebounce(d time.Duration) Option {
	return func(s *Service) {
		s.delay = d
	}
}

// NewService creates the presence tracker.
func NewService(pub pubsub.Publisher, opts ...Option) *Service {
	s := &Service{
		publisher:   pub,
		logger:      slog.Default().With("service", "presence"),
		connections: make(map[string]int),
		debounce:    make(map[string]*time.Timer),
		delay:       OfflineDebounceDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to the bridge's client lifecycle topics.
func (s *Service) Start(ctx context.Context, sub pubsub.Subscriber) {
	go func() {
		err := sub.Subscribe(ctx, websocket.TopicClientConnected, s.handleConnected)
		if err != nil && err != context.Canceled {
			s.logger.Error("Presence connect subscriber stopped with error", "error", err)
		}
	}()
	go func() {
		err := sub.Subscribe(ctx, websocket.TopicClientDisconnected, s.handleDisconnected)
		if err != nil && err != context.Canceled {
			s.logger.Error("Presence disconnect subscriber stopped with error", "error", err)
		}
	}()
}

func (s *Service) handleConnected(_ context.Context, msg pubsub.Message) error {
	s.mu.Lock()
	if timer, ok := s.debounce[msg.UserID]; ok {
		timer.Stop()
		delete(s.debounce, msg.UserID)
	}
	s.connections[msg.UserID]++
	first := s.connections[msg.UserID] == 1
	online := s.onlineLocked()
	s.mu.Unlock()

	if first {
		s.logger.Info("User came online", "user_id", msg.UserID)
		s.publishUpdate(online)
	}
	return nil
}

func (s *Service) handleDisconnected(_ context.Context, msg pubsub.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections[msg.UserID] > 0 {
		s.connections[msg.UserID]--
	}
	if s.connections[msg.UserID] > 0 {
		return nil
	}
	delete(s.connections, msg.UserID)

	if s.delay == 0 {
		online := s.onlineLocked()
		s.logger.Info("User went offline", "user_id", msg.UserID)
		go s.publishUpdate(online)
		return nil
	}

	if timer, ok := s.debounce[msg.UserID]; ok {
		timer.Stop()
	}
	userID := msg.UserID
	s.debounce[userID] = time.AfterFunc(s.delay, func() {
		s.finishOffline(userID)
	})
	return nil
}

// finishOffline fires after the debounce window. The user may have
// reconnected in the meantime.
func (s *Service) finishOffline(userID string) {
	s.mu.Lock()
	delete(s.debounce, userID)
	if s.connections[userID] > 0 {
		s.mu.Unlock()
		return
	}
	online := s.onlineLocked()
	s.mu.Unlock()

	s.logger.Info("User went offline", "user_id", userID)
	s.publishUpdate(online)
}

// Online returns the IDs of currently online users, sorted.
func (s *Service) Online() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onlineLocked()
}

// IsOnline reports whether a user holds at least one connection.
func (s *Service) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections[userID] > 0
}

func (s *Service) onlineLocked() []string {
	online := make([]string, 0, len(s.connections))
	for userID, n := range s.connections {
		if n > 0 {
			online = append(online, userID)
		}
	}
	sort.Strings(online)
	return online
}

func (s *Service) publishUpdate(online []string) {
	payload, err := json.Marshal(map[string]any{"users": online})
	if err != nil {
		s.logger.Error("Failed to marshal presence update", "error", err)
		return
	}
	msg := pubsub.Message{Topic: TopicUpdated, Payload: payload}
	if err := s.publisher.Publish(context.Background(), msg); err != nil {
		s.logger.Error("Failed to publish presence update", "error", err)
	}
}

// StartPush forwards presence updates to connected admins.
func StartPush(ctx context.Context, sub pubsub.Subscriber, bridge *websocket.Bridge) {
	go func() {
		err := sub.Subscribe(ctx, TopicUpdated, func(_ context.Context, msg pubsub.Message) error {
			frame, err := websocket.Encode("presence", json.RawMessage(msg.Payload))
			if err != nil {
				return err
			}
			bridge.BroadcastAdmins(frame)
			return nil
		})
		if err != nil && err != context.Canceled {
			slog.Error("Presence push subscriber stopped with error", "error", err)
		}
	}()
}
