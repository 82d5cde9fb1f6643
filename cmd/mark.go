package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var markCmd = &cobra.Command{
	Use:   "mark <account> <read|unread|starred|unstarred> <message-id>...",
	Short: "Change message state on the server and in the local store",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[1] {
		case "read", "unread", "starred", "unstarred":
		default:
			return fmt.Errorf("unknown state %q (use read, unread, starred or unstarred)", args[1])
		}

		deps, cleanup, err := buildDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		account, err := lookupAccount(deps, args[0])
		if err != nil {
			return err
		}
		ids := args[2:]

		switch args[1] {
		case "read":
			err = account.Sync.MarkRead(cmd.Context(), true, ids)
		case "unread":
			err = account.Sync.MarkRead(cmd.Context(), false, ids)
		case "starred":
			err = account.Sync.MarkStarred(cmd.Context(), true, ids)
		case "unstarred":
			err = account.Sync.MarkStarred(cmd.Context(), false, ids)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "marked %d messages %s\n", len(ids), args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(markCmd)
}
