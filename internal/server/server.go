package server

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/afero"

	"github.com/nstlabs/prepdesk/internal/catalog"
	"github.com/nstlabs/prepdesk/internal/chat"
	"github.com/nstlabs/prepdesk/internal/config"
	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/economy"
	"github.com/nstlabs/prepdesk/internal/logging"
	"github.com/nstlabs/prepdesk/internal/module"
	"github.com/nstlabs/prepdesk/internal/presence"
	"github.com/nstlabs/prepdesk/internal/pubsub"
	"github.com/nstlabs/prepdesk/internal/settings"
	"github.com/nstlabs/prepdesk/internal/store"
	"github.com/nstlabs/prepdesk/internal/websocket"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E   *echo.Echo
	Cfg *config.Config

	tree     store.Tree
	bus      *pubsub.WatermillBridge
	bridge   *websocket.Bridge
	users    domain.UserRepository
	settings *settings.Service
	presence *presence.Service
	modules  []module.Module

	cancel context.CancelFunc
}

// New assembles the full application: store backend, message bus, WebSocket
// bridge, core services, and the feature modules.
func New() *Server {
	// Load environment variables from a .env file if one exists.
	if err := godotenv.Load(); err != nil {
		// slog is not configured yet, the standard logger is fine here.
		log.Println("No .env file found, relying on environment variables")
	}

	logging.New()
	cfg := config.New()

	tree, err := newTree(cfg)
	if err != nil {
		slog.Error("Failed to open store backend", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	bus := pubsub.NewWatermillBridge()
	bridge := websocket.NewBridge(bus)

	users := store.NewTreeUserStore(tree)
	updater := domain.UserUpdaterFunc(func(ctx context.Context, user *domain.User) error {
		return users.Save(ctx, user)
	})

	settingsSvc := settings.NewService(tree)
	wallet := economy.NewWallet(updater)
	presenceSvc := presence.NewService(bus)

	catalogSvc := catalog.NewService(tree, newContentFetcher(tree))
	assets := catalog.NewAssetStore(afero.NewBasePathFs(afero.NewOsFs(), cfg.AssetDir))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	cookieStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
	}
	e.Use(session.Middleware(cookieStore))

	modules := []module.Module{
		chat.New(chat.Dependencies{
			Tree:       tree,
			Publisher:  bus,
			Subscriber: bus,
			Bridge:     bridge,
			Settings:   settingsSvc,
			Wallet:     wallet,
			Updater:    updater,
		}),
		economy.New(economy.Dependencies{
			Wallet:   wallet,
			Settings: settingsSvc,
		}),
		catalog.New(catalog.Dependencies{
			Service: catalogSvc,
			Assets:  assets,
		}),
	}

	return &Server{
		E:        e,
		Cfg:      cfg,
		tree:     tree,
		bus:      bus,
		bridge:   bridge,
		users:    users,
		settings: settingsSvc,
		presence: presenceSvc,
		modules:  modules,
	}
}

// newTree opens the configured store backend.
func newTree(cfg *config.Config) (store.Tree, error) {
	if cfg.StoreBackend == "surreal" {
		db, err := store.NewSurrealDB(context.Background(), cfg.DBUrl, cfg.DBUser, cfg.DBPass, cfg.DBNs, cfg.DBDb)
		if err != nil {
			return nil, err
		}
		return store.NewSurrealTree(db), nil
	}
	return store.NewMemoryTree(), nil
}
