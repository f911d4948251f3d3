package store

import (
	"context"
	"fmt"

	"github.com/nstlabs/prepdesk/internal/domain"
)

// usersPath is the tree prefix holding user records, one document per user.
const usersPath = "users"

// TreeUserStore implements domain.UserRepository on top of a Tree. It works
// against either backend, so user records live next to chat and settings
// data in the same store.
type TreeUserStore struct {
	tree Tree
}

// NewTreeUserStore creates a user repository over the given tree.
func NewTreeUserStore(tree Tree) *TreeUserStore {
	return &TreeUserStore{tree: tree}
}

// FindByID loads a user record. Returns domain.ErrNotFound for unknown IDs.
func (s *TreeUserStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	snap, err := s.tree.Get(ctx, childPath(usersPath, id))
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	if snap == nil {
		return nil, domain.ErrNotFound
	}

	var user domain.User
	if err := Decode(snap, &user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	return &user, nil
}

// Save writes the full user record.
func (s *TreeUserStore) Save(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		return fmt.Errorf("user has no id")
	}
	if err := s.tree.Set(ctx, childPath(usersPath, user.ID), user); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	return nil
}
