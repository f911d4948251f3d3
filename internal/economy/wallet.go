package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nstlabs/prepdesk/internal/domain"
)

// Errors returned by wallet operations.
var (
	ErrAlreadyClaimed = errors.New("daily reward already claimed today")
	ErrGoalNotMet     = errors.New("daily study goal not met")
)

// Wallet owns every credit mutation on a user record. All changes flow
// through the injected UserUpdater, which persists the record and notifies
// observers; nothing else writes user credit state.
type Wallet struct {
	updater domain.UserUpdater
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithClock overrides the wallet's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Wallet) {
		w.now = now
	}
}

// NewWallet creates a wallet service.
func NewWallet(updater domain.UserUpdater, opts ...Option) *Wallet {
	w := &Wallet{
		updater: updater,
		logger:  slog.Default().With("service", "wallet"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Deduct removes amount credits from the user and persists the record.
// Returns domain.ErrInsufficientCredits without mutating anything if the
// balance is too low.
func (w *Wallet) Deduct(ctx context.Context, user *domain.User, amount int) error {
	if amount < 0 {
		return fmt.Errorf("deduct amount must not be negative, got %d", amount)
	}
	if user.Credits < amount {
		return domain.ErrInsufficientCredits
	}

	user.Credits -= amount
	if err := w.updater.UpdateUser(ctx, user); err != nil {
		// Roll back the in-memory mutation so the caller's view stays
		// consistent with the store.
		user.Credits += amount
		return fmt.Errorf("persist deduction: %w", err)
	}

	w.logger.Info("Deducted credits", "user_id", user.ID, "amount", amount, "balance", user.Credits)
	return nil
}

// Grant adds amount credits to the user and persists the record.
func (w *Wallet) Grant(ctx context.Context, user *domain.User, amount int) error {
	if amount < 0 {
		return fmt.Errorf("grant amount must not be negative, got %d", amount)
	}

	user.Credits += amount
	if err := w.updater.UpdateUser(ctx, user); err != nil {
		user.Credits -= amount
		return fmt.Errorf("persist grant: %w", err)
	}

	w.logger.Info("Granted credits", "user_id", user.ID, "amount", amount, "balance", user.Credits)
	return nil
}

// ClaimDailyReward grants the configured daily reward once per calendar day,
// provided the user's tracked study time met the target.
func (w *Wallet) ClaimDailyReward(ctx context.Context, user *domain.User, studiedSeconds, targetSeconds, reward int) error {
	now := w.now()
	if sameDay(user.LastRewardClaim, now) {
		return ErrAlreadyClaimed
	}
	if studiedSeconds < targetSeconds {
		return ErrGoalNotMet
	}

	prevClaim := user.LastRewardClaim
	user.Credits += reward
	user.LastRewardClaim = now
	if err := w.updater.UpdateUser(ctx, user); err != nil {
		user.Credits -= reward
		user.LastRewardClaim = prevClaim
		return fmt.Errorf("persist reward claim: %w", err)
	}

	w.logger.Info("Daily reward claimed", "user_id", user.ID, "reward", reward, "balance", user.Credits)
	return nil
}

// EnableAutoDeduct persists the user's preference to skip payment
// confirmation on future paid sends.
func (w *Wallet) EnableAutoDeduct(ctx context.Context, user *domain.User) error {
	if user.IsAutoDeductEnabled {
		return nil
	}
	user.IsAutoDeductEnabled = true
	if err := w.updater.UpdateUser(ctx, user); err != nil {
		user.IsAutoDeductEnabled = false
		return fmt.Errorf("persist auto-deduct preference: %w", err)
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
