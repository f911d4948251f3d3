package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nstlabs/prepdesk/internal/presence"
)

// Start boots the background services and runs the HTTP server until an
// interrupt, then shuts everything down gracefully.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.bridge.Run(ctx)
	s.presence.Start(ctx, s.bus)
	presence.StartPush(ctx, s.bus, s.bridge)

	if err := s.settings.Start(ctx); err != nil {
		slog.Error("Failed to start settings service", "error", err)
		os.Exit(1)
	}

	s.registerRoutes(ctx)

	go func() {
		if err := s.E.Start(s.Cfg.Addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "error", err)
			os.Exit(1)
		}
	}()
	slog.Info("Server started", "addr", s.Cfg.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	for _, m := range s.modules {
		if err := m.Shutdown(shutdownCtx); err != nil {
			slog.Error("Module shutdown failed", "module", m.Name(), "error", err)
		}
	}
	s.settings.Shutdown()
	cancel()

	if err := s.bus.Close(); err != nil {
		slog.Error("Failed to close message bus", "error", err)
	}
	if err := s.E.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
}
