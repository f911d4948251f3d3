package chat

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/economy"
	"github.com/nstlabs/prepdesk/internal/middleware"
	"github.com/nstlabs/prepdesk/internal/module"
	"github.com/nstlabs/prepdesk/internal/pubsub"
	"github.com/nstlabs/prepdesk/internal/settings"
	"github.com/nstlabs/prepdesk/internal/store"
	"github.com/nstlabs/prepdesk/internal/websocket"
)

// Dependencies holds the services the chat module requires. Constructor
// injection keeps the wiring explicit.
type Dependencies struct {
	Tree       store.Tree
	Publisher  pubsub.Publisher
	Subscriber pubsub.Subscriber
	Bridge     *websocket.Bridge
	Settings   *settings.Service
	Wallet     *economy.Wallet
	Updater    domain.UserUpdater
}

// ChatModule implements module.Module for the chat feature: session routing,
// message delivery, gating and payment, and push fan-out.
type ChatModule struct {
	module.BaseModule
	deps Dependencies

	projector *Projector
}

// New creates the chat module with its dependencies.
func New(deps Dependencies) *ChatModule {
	return &ChatModule{deps: deps}
}

// Name returns the module name.
func (m *ChatModule) Name() string {
	return "chat"
}

// Boot starts the projection and push pipelines and registers the routes.
// The group is expected to already carry the auth middleware.
func (m *ChatModule) Boot(ctx context.Context, g *echo.Group) error {
	slog.Info("Booting chat module")

	m.projector = NewProjector(m.deps.Tree, m.deps.Publisher)
	if err := m.projector.Start(ctx); err != nil {
		return err
	}

	subscriber := NewSubscriber(m.deps.Subscriber, m.deps.Bridge)
	subscriber.Start(ctx)

	adapter := NewAdapter(m.deps.Tree)
	sender := NewSender(adapter, m.deps.Settings, m.deps.Wallet, m.deps.Updater, m.deps.Tree)
	handler := NewHandler(sender, adapter, m.deps.Settings, m.projector.Sessions())

	g.GET("/selection", handler.GetSelection)
	g.GET("/messages", handler.GetMessages)
	g.POST("/messages", handler.PostMessage)
	g.PATCH("/messages/:id", handler.EditMessage)
	g.DELETE("/messages/:id", handler.DeleteMessage)
	g.GET("/sessions", handler.GetSessions, middleware.RequireAdmin())
	return nil
}

// Shutdown stops the live store subscriptions.
func (m *ChatModule) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down chat module")
	if m.projector != nil {
		m.projector.Shutdown()
	}
	return nil
}
