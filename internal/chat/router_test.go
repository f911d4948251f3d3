package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/settings"
)

func TestRoute_StudentModes(t *testing.T) {
	student := &domain.User{ID: "s1", Role: domain.RoleStudent}

	t.Run("universal only forces public", func(t *testing.T) {
		sel := Route(student, settings.ModeUniversalOnly, Choice{Private: true})
		assert.Equal(t, PublicChannel(), sel.Active)
		assert.Equal(t, []Channel{PublicChannel()}, sel.Selectable)
		assert.False(t, sel.InboxView)
	})

	t.Run("private only forces own channel", func(t *testing.T) {
		sel := Route(student, settings.ModePrivateOnly, Choice{})
		assert.Equal(t, PrivateChannel("s1"), sel.Active)
		assert.Equal(t, []Channel{PrivateChannel("s1")}, sel.Selectable)
	})

	t.Run("both defaults to public", func(t *testing.T) {
		sel := Route(student, settings.ModeBoth, Choice{})
		assert.Equal(t, PublicChannel(), sel.Active)
		assert.Equal(t, []Channel{PublicChannel(), PrivateChannel("s1")}, sel.Selectable)
	})

	t.Run("both honors private choice", func(t *testing.T) {
		sel := Route(student, settings.ModeBoth, Choice{Private: true})
		assert.Equal(t, PrivateChannel("s1"), sel.Active)
	})

	t.Run("student cannot target another student's channel", func(t *testing.T) {
		sel := Route(student, settings.ModeBoth, Choice{Private: true, StudentID: "victim"})
		assert.Equal(t, PrivateChannel("s1"), sel.Active)
	})
}

func TestRoute_Admin(t *testing.T) {
	admin := &domain.User{ID: "a1", Role: domain.RoleAdmin}

	t.Run("mode restrictions do not apply", func(t *testing.T) {
		for _, mode := range []settings.ChatMode{settings.ModeUniversalOnly, settings.ModePrivateOnly, settings.ModeBoth} {
			sel := Route(admin, mode, Choice{})
			assert.Equal(t, PublicChannel(), sel.Active, "mode %s", mode)
		}
	})

	t.Run("private side without student shows inbox", func(t *testing.T) {
		sel := Route(admin, settings.ModeBoth, Choice{Private: true})
		assert.True(t, sel.InboxView)
		assert.True(t, sel.Active.IsZero())
	})

	t.Run("private side with student opens that channel", func(t *testing.T) {
		sel := Route(admin, settings.ModeBoth, Choice{Private: true, StudentID: "s9"})
		assert.Equal(t, PrivateChannel("s9"), sel.Active)
		assert.False(t, sel.InboxView)
		assert.Contains(t, sel.Selectable, PublicChannel())
		assert.Contains(t, sel.Selectable, PrivateChannel("s9"))
	})
}
