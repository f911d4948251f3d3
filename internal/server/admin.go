package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/presence"
	"github.com/nstlabs/prepdesk/internal/settings"
)

// SettingsHandler covers the admin control endpoints: runtime settings, chat
// bans, and presence.
type SettingsHandler struct {
	settings *settings.Service
	users    domain.UserRepository
	presence *presence.Service
}

// NewSettingsHandler creates the admin handler.
func NewSettingsHandler(sys *settings.Service, users domain.UserRepository, pres *presence.Service) *SettingsHandler {
	return &SettingsHandler{settings: sys, users: users, presence: pres}
}

// Get returns the active system settings.
func (h *SettingsHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.settings.Current())
}

// Put replaces the system settings. Connected services pick the change up
// through the live settings subscription.
func (h *SettingsHandler) Put(c echo.Context) error {
	var sys settings.System
	if err := c.Bind(&sys); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.settings.Save(c.Request().Context(), sys); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, sys)
}

type chatBanRequest struct {
	Banned bool `json:"banned"`
}

// SetChatBan flips a user's chat ban flag.
func (h *SettingsHandler) SetChatBan(c echo.Context) error {
	var req chatBanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.users.FindByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown user")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load user")
	}

	user.IsChatBanned = req.Banned
	if err := h.users.Save(c.Request().Context(), user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save user")
	}
	return c.JSON(http.StatusOK, user)
}

// GetPresence returns the IDs of currently online users.
func (h *SettingsHandler) GetPresence(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"users": h.presence.Online()})
}
