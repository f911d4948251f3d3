package chat

import (
	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/settings"
)

// Choice is the caller's requested view. Private selects the private side;
// StudentID targets a specific student's channel and only admins may set it.
type Choice struct {
	Private   bool
	StudentID string
}

// Selection is the routed session state for one user: which channels they may
// open, which one is active, and whether the inbox (session list) should be
// shown instead of a message view.
type Selection struct {
	Active     Channel
	Selectable []Channel
	InboxView  bool
}

// Route resolves the channel selection for a user from the current chat mode
// and the user's choice. Mode restrictions apply to students only; admins see
// both sides regardless of mode. A student's private side is always their own
// channel, whatever the choice names.
func Route(user *domain.User, mode settings.ChatMode, choice Choice) Selection {
	if user.IsAdmin() {
		return routeAdmin(choice)
	}

	own := PrivateChannel(user.ID)
	switch mode {
	case settings.ModeUniversalOnly:
		return Selection{
			Active:     PublicChannel(),
			Selectable: []Channel{PublicChannel()},
		}
	case settings.ModePrivateOnly:
		return Selection{
			Active:     own,
			Selectable: []Channel{own},
		}
	default:
		sel := Selection{Selectable: []Channel{PublicChannel(), own}}
		if choice.Private {
			sel.Active = own
		} else {
			sel.Active = PublicChannel()
		}
		return sel
	}
}

// routeAdmin resolves an admin's view. An admin on the private side without a
// target student lands on the inbox, the list of open student sessions.
func routeAdmin(choice Choice) Selection {
	sel := Selection{Selectable: []Channel{PublicChannel()}}
	if !choice.Private {
		sel.Active = PublicChannel()
		return sel
	}
	if choice.StudentID == "" {
		sel.InboxView = true
		return sel
	}
	sel.Active = PrivateChannel(choice.StudentID)
	sel.Selectable = append(sel.Selectable, sel.Active)
	return sel
}
