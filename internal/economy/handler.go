package economy

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nstlabs/prepdesk/internal/middleware"
	"github.com/nstlabs/prepdesk/internal/settings"
)

// Handler exposes wallet operations over JSON endpoints.
type Handler struct {
	wallet   *Wallet
	settings *settings.Service
}

// NewHandler creates the economy HTTP handler.
func NewHandler(wallet *Wallet, sys *settings.Service) *Handler {
	return &Handler{wallet: wallet, settings: sys}
}

// GetBalance returns the caller's credit state.
func (h *Handler) GetBalance(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"credits":             user.Credits,
		"isAutoDeductEnabled": user.IsAutoDeductEnabled,
	})
}

// claimRequest is the body for claiming the daily reward.
type claimRequest struct {
	StudiedSeconds int `json:"studiedSeconds"`
	TargetSeconds  int `json:"targetSeconds"`
}

// ClaimReward grants the configured daily reward when the study goal was met
// and the reward was not claimed yet today.
func (h *Handler) ClaimReward(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}

	var req claimRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	reward := h.settings.Current().DailyReward
	err := h.wallet.ClaimDailyReward(c.Request().Context(), user, req.StudiedSeconds, req.TargetSeconds, reward)
	switch {
	case errors.Is(err, ErrAlreadyClaimed):
		return c.JSON(http.StatusConflict, map[string]string{"error": "Reward already claimed today."})
	case errors.Is(err, ErrGoalNotMet):
		return c.JSON(http.StatusPreconditionFailed, map[string]string{"error": "Daily study goal not met yet."})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to claim reward")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"reward":  reward,
		"credits": user.Credits,
	})
}

// EnableAutoDeduct persists the caller's preference to skip the payment
// prompt on future paid sends.
func (h *Handler) EnableAutoDeduct(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	if err := h.wallet.EnableAutoDeduct(c.Request().Context(), user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save preference")
	}
	return c.NoContent(http.StatusNoContent)
}
