package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nstlabs/prepdesk/internal/middleware"
	"github.com/nstlabs/prepdesk/internal/module"
)

// Dependencies holds the services the catalog module requires.
type Dependencies struct {
	Service *Service
	Assets  *AssetStore
}

// CatalogModule implements module.Module for study content: the syllabus
// cache and downloadable assets.
type CatalogModule struct {
	module.BaseModule
	deps Dependencies
}

// New creates the catalog module with its dependencies.
func New(deps Dependencies) *CatalogModule {
	return &CatalogModule{deps: deps}
}

// Name returns the module name.
func (m *CatalogModule) Name() string {
	return "catalog"
}

// Boot registers the routes. The group is expected to already carry the auth
// middleware.
func (m *CatalogModule) Boot(ctx context.Context, g *echo.Group) error {
	slog.Info("Booting catalog module")

	g.GET("/chapters", m.getChapters)
	g.GET("/assets/:key", m.getAsset)
	g.POST("/assets/:key", m.putAsset, middleware.RequireAdmin())
	return nil
}

func (m *CatalogModule) getChapters(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}

	// Defaults come from the student's profile; admins can query anything.
	board := c.QueryParam("board")
	classLevel := c.QueryParam("class")
	subject := c.QueryParam("subject")
	if board == "" {
		board = user.Board
	}
	if classLevel == "" {
		classLevel = user.ClassLevel
	}
	if subject == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "subject is required")
	}

	chapters, err := m.deps.Service.Chapters(c.Request().Context(), board, classLevel, subject)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to load chapters")
	}
	return c.JSON(http.StatusOK, map[string]any{"chapters": chapters})
}

func (m *CatalogModule) getAsset(c echo.Context) error {
	key := c.Param("key")
	if !validAssetKey(key) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid asset key")
	}
	reader, err := m.deps.Assets.Get(c.Request().Context(), key)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "asset not found")
	}
	defer reader.Close()
	return c.Stream(http.StatusOK, "application/octet-stream", reader)
}

func (m *CatalogModule) putAsset(c echo.Context) error {
	key := c.Param("key")
	if !validAssetKey(key) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid asset key")
	}
	defer c.Request().Body.Close()
	n, err := m.deps.Assets.Save(c.Request().Context(), key, io.LimitReader(c.Request().Body, 32<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store asset")
	}
	return c.JSON(http.StatusCreated, map[string]any{"bytes": n})
}

// validAssetKey rejects keys that could name a path outside the asset root.
// Route parameters arrive percent-decoded, so separators and dot-dot
// segments must be refused here, not left to the filesystem prefix check.
func validAssetKey(key string) bool {
	if key == "" {
		return false
	}
	if strings.Contains(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	return !strings.Contains(key, "..")
}
