package domain

import (
	"context"
	"time"
)

// Role identifies the kind of account a user holds.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// SubscriptionTier is the duration class of a user's subscription.
type SubscriptionTier string

const (
	TierFree     SubscriptionTier = "FREE"
	TierWeekly   SubscriptionTier = "WEEKLY"
	TierMonthly  SubscriptionTier = "MONTHLY"
	TierYearly   SubscriptionTier = "YEARLY"
	TierLifetime SubscriptionTier = "LIFETIME"
)

// SubscriptionLevel is the access class of a user's subscription.
type SubscriptionLevel string

const (
	LevelBasic SubscriptionLevel = "BASIC"
	LevelUltra SubscriptionLevel = "ULTRA"
)

// User represents the core user model in the application domain.
type User struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Role                Role              `json:"role"`
	Credits             int               `json:"credits"`
	IsPremium           bool              `json:"isPremium"`
	IsChatBanned        bool              `json:"isChatBanned"`
	IsGameBanned        bool              `json:"isGameBanned"`
	IsAutoDeductEnabled bool              `json:"isAutoDeductEnabled"`
	LastChatTime        time.Time         `json:"lastChatTime,omitzero"`
	LastRewardClaim     time.Time         `json:"lastRewardClaimDate,omitzero"`
	SubscriptionTier    SubscriptionTier  `json:"subscriptionTier,omitempty"`
	SubscriptionLevel   SubscriptionLevel `json:"subscriptionLevel,omitempty"`
	SubscriptionEnd     time.Time         `json:"subscriptionEndDate,omitzero"`
	Board               string            `json:"board,omitempty"`
	ClassLevel          string            `json:"classLevel,omitempty"`
	Stream              string            `json:"stream,omitempty"`
	CreatedAt           time.Time         `json:"createdAt,omitzero"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanBypassChatRestrictions reports whether every chat gate rule is waived
// for this user. Expressed as a capability so the gate logic stays
// independent of how roles are represented.
func (u *User) CanBypassChatRestrictions() bool {
	return u.Role == RoleAdmin
}

// Tier returns the user's subscription tier, defaulting to FREE.
func (u *User) Tier() SubscriptionTier {
	if u.SubscriptionTier == "" {
		return TierFree
	}
	return u.SubscriptionTier
}

// Level returns the user's subscription level, defaulting to BASIC.
func (u *User) Level() SubscriptionLevel {
	if u.SubscriptionLevel == "" {
		return LevelBasic
	}
	return u.SubscriptionLevel
}

// UserRepository defines the contract for user data storage operations.
// It lives in the domain because it's a requirement OF the domain, not
// of the database implementation.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	Save(ctx context.Context, user *User) error
}

// UserUpdater is the single entry point through which components hand back
// a mutated user record. The implementation persists the record and
// notifies any observers; callers never write user state anywhere else.
type UserUpdater interface {
	UpdateUser(ctx context.Context, user *User) error
}

// UserUpdaterFunc adapts a function to the UserUpdater interface.
type UserUpdaterFunc func(ctx context.Context, user *User) error

func (f UserUpdaterFunc) UpdateUser(ctx context.Context, user *User) error {
	return f(ctx, user)
}
