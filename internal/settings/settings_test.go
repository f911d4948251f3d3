package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstlabs/prepdesk/internal/store"
)

func TestService_DefaultsUntilDocumentExists(t *testing.T) {
	svc := NewService(store.NewMemoryTree())
	assert.Equal(t, Defaults(), svc.Current())
}

func TestService_PicksUpSavedSettings(t *testing.T) {
	tree := store.NewMemoryTree()
	svc := NewService(tree)
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx))
	defer svc.Shutdown()

	next := Defaults()
	next.ChatCost = 3
	next.ChatMode = ModePrivateOnly
	require.NoError(t, svc.Save(ctx, next))

	assert.Eventually(t, func() bool {
		cur := svc.Current()
		return cur.ChatCost == 3 && cur.ChatMode == ModePrivateOnly
	}, time.Second, 5*time.Millisecond)
}

func TestService_SaveRejectsInvalidSettings(t *testing.T) {
	svc := NewService(store.NewMemoryTree())

	bad := Defaults()
	bad.ChatMode = "SOMETIMES"
	err := svc.Save(context.Background(), bad)
	assert.Error(t, err)

	bad = Defaults()
	bad.ChatCost = -1
	err = svc.Save(context.Background(), bad)
	assert.Error(t, err)
}

func TestService_InvalidDocumentKeepsLastGood(t *testing.T) {
	tree := store.NewMemoryTree()
	svc := NewService(tree)
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx))
	defer svc.Shutdown()

	good := Defaults()
	good.ChatCost = 2
	require.NoError(t, svc.Save(ctx, good))
	assert.Eventually(t, func() bool {
		return svc.Current().ChatCost == 2
	}, time.Second, 5*time.Millisecond)

	// A raw write bypassing validation must not poison the running config.
	require.NoError(t, tree.Set(ctx, SystemPath, map[string]any{"chatCost": -5, "chatMode": "BOTH"}))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, svc.Current().ChatCost)
}

func TestService_PartialDocumentDecodesOverDefaults(t *testing.T) {
	tree := store.NewMemoryTree()
	svc := NewService(tree)
	ctx := context.Background()

	require.NoError(t, tree.Set(ctx, SystemPath, map[string]any{"chatCost": 4, "chatMode": "BOTH"}))
	require.NoError(t, svc.Start(ctx))
	defer svc.Shutdown()

	assert.Eventually(t, func() bool {
		return svc.Current().ChatCost == 4
	}, time.Second, 5*time.Millisecond)

	cur := svc.Current()
	assert.Equal(t, Defaults().ChatCooldownHours, cur.ChatCooldownHours)
	assert.Equal(t, Defaults().DailyReward, cur.DailyReward)
}

func TestService_DocumentRemovalRestoresDefaults(t *testing.T) {
	tree := store.NewMemoryTree()
	svc := NewService(tree)
	ctx := context.Background()

	custom := Defaults()
	custom.ChatCost = 9
	require.NoError(t, tree.Set(ctx, SystemPath, custom))
	require.NoError(t, svc.Start(ctx))
	defer svc.Shutdown()

	assert.Eventually(t, func() bool {
		return svc.Current().ChatCost == 9
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, tree.Remove(ctx, SystemPath))
	assert.Eventually(t, func() bool {
		return svc.Current() == Defaults()
	}, time.Second, 5*time.Millisecond)
}
