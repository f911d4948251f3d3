package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nstlabs/prepdesk/internal/pubsub"
	"github.com/nstlabs/prepdesk/internal/websocket"
)

// Pusher delivers frames to connected WebSocket clients. Satisfied by
// *websocket.Bridge.
type Pusher interface {
	Broadcast(payload []byte)
	BroadcastAdmins(payload []byte)
	SendDirect(userID string, payload []byte)
}

// Subscriber listens for chat projections on the pub/sub bus and pushes them
// to connected WebSocket clients. Public channel updates go to everyone;
// private channel updates go to the owning student and to admins; the inbox
// goes to admins only.
type Subscriber struct {
	subscriber pubsub.Subscriber
	bridge     Pusher
	logger     *slog.Logger
}

// NewSubscriber creates the push delivery service for the chat module.
func NewSubscriber(sub pubsub.Subscriber, bridge Pusher) *Subscriber {
	return &Subscriber{
		subscriber: sub,
		bridge:     bridge,
		logger:     slog.Default().With("service", "chat_subscriber"),
	}
}

// Start begins listening for chat projections. Returns once the
// subscriptions are established; delivery runs until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) {
	s.logger.Info("Starting chat push delivery")

	go func() {
		err := s.subscriber.Subscribe(ctx, TopicChannelUpdated, s.handleChannelUpdate)
		if err != nil && err != context.Canceled {
			s.logger.Error("Channel update subscriber stopped with error", "error", err)
		}
	}()

	go func() {
		err := s.subscriber.Subscribe(ctx, TopicSessionsUpdated, s.handleSessionsUpdate)
		if err != nil && err != context.Canceled {
			s.logger.Error("Sessions subscriber stopped with error", "error", err)
		}
	}()
}

// handleChannelUpdate routes one channel projection to its audience.
func (s *Subscriber) handleChannelUpdate(_ context.Context, msg pubsub.Message) error {
	var event channelEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("unmarshal channel event: %w", err)
	}

	frame, err := websocket.Encode(KindChannel, json.RawMessage(msg.Payload))
	if err != nil {
		return fmt.Errorf("encode channel frame: %w", err)
	}

	if event.Channel == "public" {
		s.bridge.Broadcast(frame)
		return nil
	}

	// Private updates are visible to the student and every admin. Admin
	// connections may receive the frame twice when the admin is also the
	// target; clients replace state wholesale, so duplicates are harmless.
	s.bridge.SendDirect(event.StudentID, frame)
	s.bridge.BroadcastAdmins(frame)
	return nil
}

// handleSessionsUpdate pushes the refreshed inbox to admins.
func (s *Subscriber) handleSessionsUpdate(_ context.Context, msg pubsub.Message) error {
	frame, err := websocket.Encode(KindSessions, json.RawMessage(msg.Payload))
	if err != nil {
		return fmt.Errorf("encode sessions frame: %w", err)
	}
	s.bridge.BroadcastAdmins(frame)
	return nil
}
