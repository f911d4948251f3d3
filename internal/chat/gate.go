package chat

import (
	"fmt"
	"time"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/settings"
)

// AccessDecision is the outcome of evaluating whether a user may post right
// now. Reason is a user-facing sentence, set only when denied.
type AccessDecision struct {
	Allowed bool
	Reason  string
}

// Evaluate runs the send-permission rule ladder for a user posting to a
// channel. Rules are checked in order and the first match wins:
//
//  1. admins bypass every restriction
//  2. banned users are always denied
//  3. the public channel can be disabled globally
//  4. a zero cost disables all economic checks
//  5. premium users pay nothing and have no cooldown
//  6. balance must cover the cost
//  7. the per-user cooldown must have elapsed
//
// Passing the gate does not charge the user; payment is settled at send time.
func Evaluate(user *domain.User, ch Channel, sys settings.System, now time.Time) AccessDecision {
	if user.CanBypassChatRestrictions() {
		return AccessDecision{Allowed: true}
	}
	if user.IsChatBanned {
		return AccessDecision{Reason: "You are banned from chat."}
	}
	if ch.IsPublic() && !sys.IsChatEnabled {
		return AccessDecision{Reason: "Chat Disabled by Admin"}
	}
	if sys.ChatCost == 0 {
		return AccessDecision{Allowed: true}
	}
	if user.IsPremium {
		return AccessDecision{Allowed: true}
	}
	if user.Credits < sys.ChatCost {
		return AccessDecision{Reason: fmt.Sprintf("Insufficient Credits (Need %d)", sys.ChatCost)}
	}
	if !user.LastChatTime.IsZero() {
		elapsed := now.Sub(user.LastChatTime).Hours()
		if elapsed < sys.ChatCooldownHours {
			remaining := sys.ChatCooldownHours - elapsed
			return AccessDecision{Reason: fmt.Sprintf("Cooldown: Wait %.1f hrs", remaining)}
		}
	}
	return AccessDecision{Allowed: true}
}
