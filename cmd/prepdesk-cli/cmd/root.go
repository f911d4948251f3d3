package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nstlabs/prepdesk/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "prepdesk-cli",
	Short: "PrepDesk admin CLI",
	Long: `PrepDesk CLI is a command-line interface for operating a PrepDesk
deployment: managing chat bans, runtime settings, and announcements.

It connects to the same store as the server, so changes take effect
immediately through the live subscriptions.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openTree connects to the store backend from the environment. CLI commands
// mutate shared state, so only the database backend makes sense here.
func openTree(ctx context.Context) (store.Tree, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	url := os.Getenv("SURREAL_URL")
	ns := os.Getenv("SURREAL_NS")
	dbName := os.Getenv("SURREAL_DB")
	if url == "" || ns == "" || dbName == "" {
		return nil, fmt.Errorf("SURREAL_URL, SURREAL_NS and SURREAL_DB must be set")
	}

	db, err := store.NewSurrealDB(ctx, url, os.Getenv("SURREAL_USER"), os.Getenv("SURREAL_PASS"), ns, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}
	return store.NewSurrealTree(db), nil
}
