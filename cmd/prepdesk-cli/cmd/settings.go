package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nstlabs/prepdesk/internal/settings"
	"github.com/nstlabs/prepdesk/internal/store"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change runtime settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current system settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tree, err := openTree(ctx)
		if err != nil {
			return err
		}

		sys := settings.Defaults()
		snap, err := tree.Get(ctx, settings.SystemPath)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
		if snap != nil {
			if err := store.Decode(snap, &sys); err != nil {
				return fmt.Errorf("decode settings: %w", err)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sys)
	},
}

var (
	flagChatCost    int
	flagCooldown    float64
	flagChatEnabled bool
	flagChatMode    string
)

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update system settings",
	Long: `Updates the system settings document. Unspecified flags keep their
current values. The server picks the change up live.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tree, err := openTree(ctx)
		if err != nil {
			return err
		}

		sys := settings.Defaults()
		if snap, err := tree.Get(ctx, settings.SystemPath); err == nil && snap != nil {
			if err := store.Decode(snap, &sys); err != nil {
				return fmt.Errorf("decode settings: %w", err)
			}
		}

		if cmd.Flags().Changed("chat-cost") {
			sys.ChatCost = flagChatCost
		}
		if cmd.Flags().Changed("cooldown-hours") {
			sys.ChatCooldownHours = flagCooldown
		}
		if cmd.Flags().Changed("chat-enabled") {
			sys.IsChatEnabled = flagChatEnabled
		}
		if cmd.Flags().Changed("chat-mode") {
			sys.ChatMode = settings.ChatMode(flagChatMode)
		}

		if err := tree.Set(ctx, settings.SystemPath, sys); err != nil {
			return fmt.Errorf("write settings: %w", err)
		}
		fmt.Println("Settings updated.")
		return nil
	},
}

func init() {
	settingsSetCmd.Flags().IntVar(&flagChatCost, "chat-cost", 0, "credits charged per message")
	settingsSetCmd.Flags().Float64Var(&flagCooldown, "cooldown-hours", 0, "hours between paid messages")
	settingsSetCmd.Flags().BoolVar(&flagChatEnabled, "chat-enabled", true, "whether the public channel is open")
	settingsSetCmd.Flags().StringVar(&flagChatMode, "chat-mode", "", "UNIVERSAL_ONLY, PRIVATE_ONLY or BOTH")

	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
