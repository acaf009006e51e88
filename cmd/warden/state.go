package main

import (
	"fmt"
	"io"
	"time"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/storage"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show cursors and submission counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		cursors, err := store.ListCursors(ctx)
		if err != nil {
			return err
		}
		counts, err := store.CountSubmissions(ctx)
		if err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), cursors, counts)
		return nil
	},
}

func printState(out io.Writer, cursors []storage.Cursor, counts map[bridge.SubmissionStatus]int) {
	fmt.Fprintln(out, "cursors:")
	if len(cursors) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, c := range cursors {
		fmt.Fprintf(out, "  %-12s %d (updated %s)\n", c.Chain, c.Height, c.UpdatedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(out, "submissions:")
	for _, st := range []bridge.SubmissionStatus{bridge.StatusPending, bridge.StatusConfirmed, bridge.StatusFailed} {
		fmt.Fprintf(out, "  %-12s %d\n", st, counts[st])
	}
}
