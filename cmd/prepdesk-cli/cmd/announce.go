package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nstlabs/prepdesk/internal/chat"
	"github.com/nstlabs/prepdesk/internal/domain"
)

var (
	flagAnnounceColor     string
	flagAnnounceAnimation string
)

var announceCmd = &cobra.Command{
	Use:   "announce <message>",
	Short: "Post an announcement to the public channel",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tree, err := openTree(ctx)
		if err != nil {
			return err
		}

		adapter := chat.NewAdapter(tree)
		id, err := adapter.Append(ctx, chat.PublicChannel(), chat.ChatMessage{
			UserID:         "system",
			UserName:       "PrepDesk",
			UserRole:       domain.RoleAdmin,
			Text:           strings.Join(args, " "),
			Timestamp:      time.Now().UTC(),
			AdminColor:     flagAnnounceColor,
			AdminAnimation: flagAnnounceAnimation,
		})
		if err != nil {
			return fmt.Errorf("post announcement: %w", err)
		}
		fmt.Printf("Announcement posted (%s).\n", id)
		return nil
	},
}

func init() {
	announceCmd.Flags().StringVar(&flagAnnounceColor, "color", "", "highlight color for the announcement")
	announceCmd.Flags().StringVar(&flagAnnounceAnimation, "animation", "", "animation style for the announcement")
	rootCmd.AddCommand(announceCmd)
}
