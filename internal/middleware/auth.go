package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/nstlabs/prepdesk/internal/domain"
)

// UserContextKey is where authenticated user records live in the echo context.
const UserContextKey = "user"

// SessionName is the cookie session holding the signed-in user's ID.
const SessionName = "prepdesk_session"

// sessionUserKey is the session value holding the user's ID.
const sessionUserKey = "user_id"

// Auth loads the signed-in user from the cookie session and puts the full
// record into the request context. Requests without a valid session get a 401.
func Auth(users domain.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := session.Get(SessionName, c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
			}

			id, ok := sess.Values[sessionUserKey].(string)
			if !ok || id == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
			}

			user, err := users.FindByID(c.Request().Context(), id)
			if errors.Is(err, domain.ErrNotFound) {
				// Stale session for a deleted account. Drop it.
				sess.Options.MaxAge = -1
				_ = sess.Save(c.Request(), c.Response())
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to load user")
			}

			c.Set(UserContextKey, user)
			return next(c)
		}
	}
}

// RequireAdmin rejects non-admin users. Must run after Auth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get(UserContextKey).(*domain.User)
			if !ok || user == nil || !user.IsAdmin() {
				return echo.NewHTTPError(http.StatusForbidden, "admin only")
			}
			return next(c)
		}
	}
}

// CurrentUser pulls the authenticated user out of the echo context.
func CurrentUser(c echo.Context) (*domain.User, bool) {
	user, ok := c.Get(UserContextKey).(*domain.User)
	return user, ok && user != nil
}

// SignIn records the user's ID in the cookie session.
func SignIn(c echo.Context, userID string) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Options.Path = "/"
	sess.Options.HttpOnly = true
	sess.Options.MaxAge = 86400 * 7
	sess.Values[sessionUserKey] = userID
	return sess.Save(c.Request(), c.Response())
}

// SignOut clears the cookie session.
func SignOut(c echo.Context) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	delete(sess.Values, sessionUserKey)
	return sess.Save(c.Request(), c.Response())
}
