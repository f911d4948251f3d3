package economy

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/nstlabs/prepdesk/internal/module"
	"github.com/nstlabs/prepdesk/internal/settings"
)

// Dependencies holds the services the economy module requires.
type Dependencies struct {
	Wallet   *Wallet
	Settings *settings.Service
}

// EconomyModule implements module.Module for the credit economy: balance,
// daily rewards, and the auto-deduct preference.
type EconomyModule struct {
	module.BaseModule
	deps Dependencies
}

// New creates the economy module with its dependencies.
func New(deps Dependencies) *EconomyModule {
	return &EconomyModule{deps: deps}
}

// Name returns the module name.
func (m *EconomyModule) Name() string {
	return "economy"
}

// Boot registers the routes. The group is expected to already carry the auth
// middleware.
func (m *EconomyModule) Boot(ctx context.Context, g *echo.Group) error {
	slog.Info("Booting economy module")
	handler := NewHandler(m.deps.Wallet, m.deps.Settings)

	g.GET("/balance", handler.GetBalance)
	g.POST("/reward/claim", handler.ClaimReward)
	g.POST("/auto-deduct", handler.EnableAutoDeduct)
	return nil
}
