package main

import (
	"fmt"
	"time"

	"github.com/devblac/warden/internal/relayer"
	"github.com/spf13/cobra"
)

var (
	flagWait     bool
	flagAttempts uint
	flagDelay    time.Duration
)

func init() {
	reconcileCmd.Flags().BoolVar(&flagWait, "wait", false, "Keep polling until no submission is pending")
	reconcileCmd.Flags().UintVar(&flagAttempts, "attempts", 20, "Polling rounds with --wait")
	reconcileCmd.Flags().DurationVar(&flagDelay, "delay", 5*time.Second, "Delay between polling rounds with --wait")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Settle pending submissions against their receipts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.dial(ctx); err != nil {
			return err
		}

		rc := relayer.NewReconciler(a.store, a.chainClients(), a.log)
		var res relayer.ReconcileResult
		if flagWait {
			res, err = rc.Wait(ctx, flagAttempts, flagDelay)
		} else {
			res, err = rc.Reconcile(ctx)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checked %d, confirmed %d, failed %d, pending %d\n",
			res.Checked, res.Confirmed, res.Failed, res.Pending)
		if relayer.IsStillPending(err) {
			a.log.Warn("submissions still pending", "pending", res.Pending)
			return nil
		}
		return err
	},
}
