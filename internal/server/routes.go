package server

import (
	"context"
	"log/slog"
	"os"

	appmw "github.com/nstlabs/prepdesk/internal/middleware"
)

// registerRoutes boots every module under the API group and mounts the
// auth and WebSocket endpoints.
func (s *Server) registerRoutes(ctx context.Context) {
	auth := NewAuthHandler(s.users)
	rateLimiter := appmw.RateLimiter()
	s.E.POST("/auth/login", auth.Login, rateLimiter)
	s.E.POST("/auth/register", auth.Register, rateLimiter)
	s.E.POST("/auth/logout", auth.Logout)

	authed := s.E.Group("/api", appmw.Auth(s.users))
	authed.GET("/ws", s.bridge.Handler())
	authed.GET("/me", auth.Me)

	admin := authed.Group("/admin", appmw.RequireAdmin())
	settingsHandler := NewSettingsHandler(s.settings, s.users, s.presence)
	admin.GET("/settings", settingsHandler.Get)
	admin.PUT("/settings", settingsHandler.Put)
	admin.POST("/users/:id/chat-ban", settingsHandler.SetChatBan)
	admin.GET("/presence", settingsHandler.GetPresence)

	for _, m := range s.modules {
		g := authed.Group("/" + m.Name())
		if err := m.Boot(ctx, g); err != nil {
			slog.Error("Failed to boot module", "module", m.Name(), "error", err)
			os.Exit(1)
		}
	}
}
