package economy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstlabs/prepdesk/internal/domain"
)

// recordingUpdater counts persists and can be told to fail.
type recordingUpdater struct {
	saves int
	fail  error
}

func (u *recordingUpdater) UpdateUser(ctx context.Context, user *domain.User) error {
	if u.fail != nil {
		return u.fail
	}
	u.saves++
	return nil
}

func TestWallet_Deduct(t *testing.T) {
	updater := &recordingUpdater{}
	wallet := NewWallet(updater)
	user := &domain.User{ID: "s1", Credits: 5}

	require.NoError(t, wallet.Deduct(context.Background(), user, 2))
	assert.Equal(t, 3, user.Credits)
	assert.Equal(t, 1, updater.saves)
}

func TestWallet_DeductInsufficient(t *testing.T) {
	updater := &recordingUpdater{}
	wallet := NewWallet(updater)
	user := &domain.User{ID: "s1", Credits: 1}

	err := wallet.Deduct(context.Background(), user, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.Equal(t, 1, user.Credits)
	assert.Equal(t, 0, updater.saves)
}

func TestWallet_DeductRollsBackOnPersistFailure(t *testing.T) {
	updater := &recordingUpdater{fail: errors.New("db down")}
	wallet := NewWallet(updater)
	user := &domain.User{ID: "s1", Credits: 5}

	err := wallet.Deduct(context.Background(), user, 2)
	require.Error(t, err)
	assert.Equal(t, 5, user.Credits)
}

func TestWallet_DeductRejectsNegativeAmount(t *testing.T) {
	wallet := NewWallet(&recordingUpdater{})
	user := &domain.User{ID: "s1", Credits: 5}

	err := wallet.Deduct(context.Background(), user, -1)
	assert.Error(t, err)
	assert.Equal(t, 5, user.Credits)
}

func TestWallet_Grant(t *testing.T) {
	updater := &recordingUpdater{}
	wallet := NewWallet(updater)
	user := &domain.User{ID: "s1", Credits: 5}

	require.NoError(t, wallet.Grant(context.Background(), user, 3))
	assert.Equal(t, 8, user.Credits)
}

func TestWallet_ClaimDailyReward(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	updater := &recordingUpdater{}
	wallet := NewWallet(updater, WithClock(func() time.Time { return now }))
	user := &domain.User{ID: "s1", Credits: 2}

	require.NoError(t, wallet.ClaimDailyReward(context.Background(), user, 3600, 1800, 3))
	assert.Equal(t, 5, user.Credits)
	assert.True(t, user.LastRewardClaim.Equal(now))

	// Same calendar day, even hours later.
	now = now.Add(10 * time.Hour)
	err := wallet.ClaimDailyReward(context.Background(), user, 7200, 1800, 3)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.Equal(t, 5, user.Credits)

	// Next day works again.
	now = now.Add(15 * time.Hour)
	require.NoError(t, wallet.ClaimDailyReward(context.Background(), user, 3600, 1800, 3))
	assert.Equal(t, 8, user.Credits)
}

func TestWallet_ClaimDailyRewardGoalNotMet(t *testing.T) {
	wallet := NewWallet(&recordingUpdater{})
	user := &domain.User{ID: "s1", Credits: 2}

	err := wallet.ClaimDailyReward(context.Background(), user, 100, 1800, 3)
	assert.ErrorIs(t, err, ErrGoalNotMet)
	assert.Equal(t, 2, user.Credits)
	assert.True(t, user.LastRewardClaim.IsZero())
}

func TestWallet_ClaimRollsBackOnPersistFailure(t *testing.T) {
	updater := &recordingUpdater{fail: errors.New("db down")}
	wallet := NewWallet(updater)
	user := &domain.User{ID: "s1", Credits: 2}

	err := wallet.ClaimDailyReward(context.Background(), user, 3600, 1800, 3)
	require.Error(t, err)
	assert.Equal(t, 2, user.Credits)
	assert.True(t, user.LastRewardClaim.IsZero())
}

func TestWallet_EnableAutoDeduct(t *testing.T) {
	updater := &recordingUpdater{}
	wallet := NewWallet(updater)
	user := &domain.User{ID: "s1"}

	require.NoError(t, wallet.EnableAutoDeduct(context.Background(), user))
	assert.True(t, user.IsAutoDeductEnabled)
	assert.Equal(t, 1, updater.saves)

	// Already enabled is a no-op, no extra persist.
	require.NoError(t, wallet.EnableAutoDeduct(context.Background(), user))
	assert.Equal(t, 1, updater.saves)
}
