package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nstlabs/prepdesk/internal/store"
)

var banCmd = &cobra.Command{
	Use:   "ban <user-id>",
	Short: "Ban a user from chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setChatBan(cmd.Context(), args[0], true)
	},
}

var unbanCmd = &cobra.Command{
	Use:   "unban <user-id>",
	Short: "Lift a user's chat ban",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setChatBan(cmd.Context(), args[0], false)
	},
}

func setChatBan(ctx context.Context, userID string, banned bool) error {
	tree, err := openTree(ctx)
	if err != nil {
		return err
	}

	users := store.NewTreeUserStore(tree)
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", userID, err)
	}

	user.IsChatBanned = banned
	if err := users.Save(ctx, user); err != nil {
		return fmt.Errorf("save user %s: %w", userID, err)
	}

	if banned {
		fmt.Printf("User %s (%s) is now banned from chat.\n", user.Name, user.ID)
	} else {
		fmt.Printf("User %s (%s) can chat again.\n", user.Name, user.ID)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(banCmd)
	rootCmd.AddCommand(unbanCmd)
}
