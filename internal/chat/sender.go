package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/economy"
	"github.com/nstlabs/prepdesk/internal/settings"
	"github.com/nstlabs/prepdesk/internal/store"
)

// ErrSendInFlight is returned when a user submits a message while their
// previous send is still settling. Protects against double charges from
// double submits.
var ErrSendInFlight = errors.New("send already in progress")

// AccessDeniedError carries the user-facing denial reason from the gate.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// Flair is the visual styling an admin attaches to a message. Ignored for
// everyone else.
type Flair struct {
	Color     string
	Animation string
}

// SendResult is the outcome of a send attempt. When NeedsConfirmation is set
// the message was not posted; the caller must confirm the charge and retry
// via Confirm.
type SendResult struct {
	MessageID         string `json:"id,omitempty"`
	NeedsConfirmation bool   `json:"needsConfirmation,omitempty"`
	Cost              int    `json:"cost,omitempty"`
	Balance           int    `json:"balance,omitempty"`
}

// Sender runs the full posting pipeline: gate check, payment settlement,
// cooldown stamping, then the store append. One instance serves all users.
type Sender struct {
	adapter  *Adapter
	settings *settings.Service
	wallet   *economy.Wallet
	updater  domain.UserUpdater
	tree     store.Tree
	logger   *slog.Logger
	now      func() time.Time

	inflight sync.Map // user ID -> struct{}
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithSenderClock overrides the sender's time source, for tests.
func WithSenderClock(now func() time.Time) SenderOption {
	return func(s *Sender) {
		s.now = now
	}
}

// NewSender creates the posting pipeline.
func NewSender(adapter *Adapter, sys *settings.Service, wallet *economy.Wallet, updater domain.UserUpdater, tree store.Tree, opts ...SenderOption) *Sender {
	s := &Sender{
		adapter:  adapter,
		settings: sys,
		wallet:   wallet,
		updater:  updater,
		tree:     tree,
		logger:   slog.Default().With("service", "chat_sender"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send attempts to post text to a channel on the user's behalf.
//
// Empty or whitespace-only text is silently dropped. A denied gate returns
// *AccessDeniedError. When the send would cost credits and the user has not
// enabled auto-deduct, nothing is charged or posted and the result asks for
// confirmation instead.
func (s *Sender) Send(ctx context.Context, user *domain.User, ch Channel, text string, flair Flair) (SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, nil
	}

	if _, busy := s.inflight.LoadOrStore(user.ID, struct{}{}); busy {
		return SendResult{}, ErrSendInFlight
	}
	defer s.inflight.Delete(user.ID)

	sys := s.settings.Current()
	decision := Evaluate(user, ch, sys, s.now())
	if !decision.Allowed {
		return SendResult{}, &AccessDeniedError{Reason: decision.Reason}
	}

	if s.needsPayment(user, sys) {
		if !user.IsAutoDeductEnabled {
			return SendResult{NeedsConfirmation: true, Cost: sys.ChatCost, Balance: user.Credits}, nil
		}
		return s.payAndPost(ctx, user, ch, text, flair, sys)
	}
	return s.post(ctx, user, ch, text, flair)
}

// Confirm settles a previously requested charge and posts the message. The
// gate is re-evaluated because settings or the user's state may have changed
// since the confirmation was requested. When enableAuto is set the user's
// auto-deduct preference is persisted first, so future sends skip the prompt.
func (s *Sender) Confirm(ctx context.Context, user *domain.User, ch Channel, text string, flair Flair, enableAuto bool) (SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, nil
	}

	if _, busy := s.inflight.LoadOrStore(user.ID, struct{}{}); busy {
		return SendResult{}, ErrSendInFlight
	}
	defer s.inflight.Delete(user.ID)

	sys := s.settings.Current()
	decision := Evaluate(user, ch, sys, s.now())
	if !decision.Allowed {
		return SendResult{}, &AccessDeniedError{Reason: decision.Reason}
	}

	if enableAuto {
		if err := s.wallet.EnableAutoDeduct(ctx, user); err != nil {
			return SendResult{}, err
		}
	}
	if s.needsPayment(user, sys) {
		return s.payAndPost(ctx, user, ch, text, flair, sys)
	}
	return s.post(ctx, user, ch, text, flair)
}

// needsPayment reports whether this send costs credits: admins, premium
// users, and a zero cost are all exempt.
func (s *Sender) needsPayment(user *domain.User, sys settings.System) bool {
	return !user.CanBypassChatRestrictions() && !user.IsPremium && sys.ChatCost > 0
}

// payAndPost charges the user, stamps the cooldown, then appends. The charge
// and the cooldown stamp persist together in one user record write.
func (s *Sender) payAndPost(ctx context.Context, user *domain.User, ch Channel, text string, flair Flair, sys settings.System) (SendResult, error) {
	prevChat := user.LastChatTime
	user.LastChatTime = s.now()
	if err := s.wallet.Deduct(ctx, user, sys.ChatCost); err != nil {
		user.LastChatTime = prevChat
		return SendResult{}, err
	}

	res, err := s.post(ctx, user, ch, text, flair)
	if err != nil {
		// Message never landed but the charge stuck. Refund.
		if refundErr := s.wallet.Grant(ctx, user, sys.ChatCost); refundErr != nil {
			s.logger.Error("Failed to refund after post failure",
				"user_id", user.ID, "amount", sys.ChatCost, "error", refundErr)
		}
		user.LastChatTime = prevChat
		return SendResult{}, err
	}
	return res, nil
}

// post builds the message from the user's current state and appends it. For
// a student posting to their own private channel the session metadata is
// refreshed with their display name so the admin inbox can label the row.
func (s *Sender) post(ctx context.Context, user *domain.User, ch Channel, text string, flair Flair) (SendResult, error) {
	msg := ChatMessage{
		UserID:    user.ID,
		UserName:  user.Name,
		UserRole:  user.Role,
		Text:      text,
		Timestamp: s.now(),
		Tier:      user.Tier(),
		Level:     user.Level(),
	}
	if user.IsAdmin() {
		msg.AdminColor = flair.Color
		msg.AdminAnimation = flair.Animation
	}

	id, err := s.adapter.Append(ctx, ch, msg)
	if err != nil {
		return SendResult{}, err
	}

	if !ch.IsPublic() && ch.StudentID() == user.ID {
		if err := s.tree.Update(ctx, ch.MetaPath(), map[string]any{"studentName": user.Name}); err != nil {
			// The message is already delivered; the inbox just shows a
			// placeholder name until the next send.
			s.logger.Warn("Failed to update session metadata", "student_id", user.ID, "error", err)
		}
	}

	s.logger.Info("Message posted", "user_id", user.ID, "channel", ch.String(), "message_id", id)
	return SendResult{MessageID: id, Balance: user.Credits}, nil
}

// quoteReply formats a quoted reply prefix the way the composer renders it.
// Truncation counts runes so a multi-byte character is never cut mid-sequence.
func quoteReply(author, text string) string {
	if runes := []rune(text); len(runes) > 80 {
		text = string(runes[:80]) + "…"
	}
	return fmt.Sprintf("@%s: \"%s\"\n", author, text)
}
