package config

import (
	"log"
	"os"
)

// Config holds all configuration for the application.
type Config struct {
	// Addr is the listen address for the HTTP server, e.g. ":8080".
	Addr string
	// SessionSecret signs the session cookie store.
	SessionSecret string

	// StoreBackend selects the tree store implementation: "memory" or "surreal".
	StoreBackend string

	DBUrl  string
	DBNs   string
	DBDb   string
	DBUser string
	DBPass string

	// AssetDir is the root directory for downloadable lesson assets.
	AssetDir string
}

// New loads configuration from environment variables.
func New() *Config {
	cfg := &Config{
		Addr:          getenv("APP_ADDR", ":8080"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		StoreBackend:  getenv("STORE_BACKEND", "memory"),
		DBUrl:         os.Getenv("SURREAL_URL"),
		DBUser:        os.Getenv("SURREAL_USER"),
		DBPass:        os.Getenv("SURREAL_PASS"),
		DBNs:          os.Getenv("SURREAL_NS"),
		DBDb:          os.Getenv("SURREAL_DB"),
		AssetDir:      getenv("ASSET_DIR", "assets"),
	}

	if cfg.SessionSecret == "" {
		log.Fatal("Required environment variable SESSION_SECRET is not set.")
	}

	if cfg.StoreBackend == "surreal" && (cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "") {
		log.Fatal("STORE_BACKEND=surreal requires SURREAL_URL, SURREAL_NS and SURREAL_DB to be set.")
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
