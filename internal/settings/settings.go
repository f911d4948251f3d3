package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/nstlabs/prepdesk/internal/store"
)

// SystemPath is the tree path holding the system settings document.
const SystemPath = "settings/system"

// ChatMode controls which chat channels students can use.
type ChatMode string

const (
	ModeUniversalOnly ChatMode = "UNIVERSAL_ONLY"
	ModePrivateOnly   ChatMode = "PRIVATE_ONLY"
	ModeBoth          ChatMode = "BOTH"
)

// System is the admin-controlled runtime configuration. Fields mirror the
// settings document the mobile-web client reads.
type System struct {
	ChatCost          int      `json:"chatCost" validate:"gte=0"`
	ChatCooldownHours float64  `json:"chatCooldownHours" validate:"gte=0"`
	IsChatEnabled     bool     `json:"isChatEnabled"`
	ChatMode          ChatMode `json:"chatMode" validate:"oneof=UNIVERSAL_ONLY PRIVATE_ONLY BOTH"`
	DailyReward       int      `json:"dailyReward" validate:"gte=0"`
	ProfileEditCost   int      `json:"profileEditCost" validate:"gte=0"`
	IsGameEnabled     bool     `json:"isGameEnabled"`
}

// Defaults returns the settings used until an admin writes the document.
// Values match the client's fallbacks.
func Defaults() System {
	return System{
		ChatCost:          1,
		ChatCooldownHours: 6,
		IsChatEnabled:     true,
		ChatMode:          ModeBoth,
		DailyReward:       3,
		ProfileEditCost:   10,
		IsGameEnabled:     true,
	}
}

// Service holds the current settings and keeps them fresh via a live
// subscription on the settings document.
type Service struct {
	tree     store.Tree
	validate *validator.Validate
	logger   *slog.Logger

	mu      sync.RWMutex
	current System
	sub     *store.Subscription
}

// NewService creates a settings service seeded with defaults.
func NewService(tree store.Tree) *Service {
	return &Service{
		tree:     tree,
		validate: validator.New(),
		logger:   slog.Default().With("service", "settings"),
		current:  Defaults(),
	}
}

// Start subscribes to the settings document. Invalid or partial documents
// never replace the last good configuration wholesale: fields decode over
// the defaults, and documents failing validation are rejected.
func (s *Service) Start(ctx context.Context) error {
	sub, err := s.tree.Subscribe(ctx, SystemPath, s.handleSnapshot)
	if err != nil {
		return fmt.Errorf("subscribe settings: %w", err)
	}
	s.sub = sub
	return nil
}

func (s *Service) handleSnapshot(_ context.Context, snapshot any) {
	if snapshot == nil {
		s.mu.Lock()
		s.current = Defaults()
		s.mu.Unlock()
		s.logger.Info("Settings document absent, using defaults")
		return
	}

	next := Defaults()
	if err := store.Decode(snapshot, &next); err != nil {
		s.logger.Error("Failed to decode settings document", "error", err)
		return
	}
	if err := s.validate.Struct(next); err != nil {
		s.logger.Error("Rejected invalid settings document", "error", err)
		return
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	s.logger.Info("Settings updated",
		"chat_cost", next.ChatCost,
		"cooldown_hours", next.ChatCooldownHours,
		"chat_enabled", next.IsChatEnabled,
		"chat_mode", next.ChatMode)
}

// Current returns the active settings.
func (s *Service) Current() System {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save validates and writes the settings document. The live subscription
// picks the new values up like any other client.
func (s *Service) Save(ctx context.Context, sys System) error {
	if err := s.validate.Struct(sys); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := s.tree.Set(ctx, SystemPath, sys); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Shutdown stops the live subscription.
func (s *Service) Shutdown() {
	s.sub.Unsubscribe()
}
