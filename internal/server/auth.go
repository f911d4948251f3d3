package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/middleware"
)

// AuthHandler covers the session endpoints. Identity verification happens
// upstream (the mobile shell exchanges its provider token before calling
// login), so login only binds a known account to a cookie session.
type AuthHandler struct {
	users domain.UserRepository
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(users domain.UserRepository) *AuthHandler {
	return &AuthHandler{users: users}
}

type loginRequest struct {
	UserID string `json:"userId"`
}

// Login starts a cookie session for an existing account.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}

	user, err := h.users.FindByID(c.Request().Context(), req.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown user")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load user")
	}

	if err := middleware.SignIn(c, user.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to start session")
	}
	return c.JSON(http.StatusOK, user)
}

type registerRequest struct {
	Name       string `json:"name"`
	Board      string `json:"board"`
	ClassLevel string `json:"classLevel"`
	Stream     string `json:"stream"`
}

// Register creates a student account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	user := &domain.User{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Role:       domain.RoleStudent,
		Board:      req.Board,
		ClassLevel: req.ClassLevel,
		Stream:     req.Stream,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.users.Save(c.Request().Context(), user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create user")
	}

	if err := middleware.SignIn(c, user.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to start session")
	}
	return c.JSON(http.StatusCreated, user)
}

// Logout ends the session.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := middleware.SignOut(c); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to end session")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in user's record.
func (h *AuthHandler) Me(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return c.JSON(http.StatusOK, user)
}
