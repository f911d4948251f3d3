package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstlabs/prepdesk/internal/domain"
)

func TestTreeUserStore_RoundTrip(t *testing.T) {
	users := NewTreeUserStore(NewMemoryTree())
	ctx := context.Background()

	saved := &domain.User{
		ID:      "s1",
		Name:    "Asha",
		Role:    domain.RoleStudent,
		Credits: 7,
		Board:   "CBSE",
	}
	require.NoError(t, users.Save(ctx, saved))

	loaded, err := users.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, saved.Name, loaded.Name)
	assert.Equal(t, saved.Credits, loaded.Credits)
	assert.Equal(t, saved.Role, loaded.Role)
	assert.Equal(t, saved.Board, loaded.Board)
}

func TestTreeUserStore_UnknownID(t *testing.T) {
	users := NewTreeUserStore(NewMemoryTree())

	_, err := users.FindByID(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTreeUserStore_SaveRequiresID(t *testing.T) {
	users := NewTreeUserStore(NewMemoryTree())

	err := users.Save(context.Background(), &domain.User{Name: "No ID"})
	assert.Error(t, err)
}
