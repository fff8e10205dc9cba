package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var retries int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local dataset with the remote store",
		Long: "Compares version stamps with the remote copy of the profile's dataset. The newer side wins; " +
			"equal versions are merged record by record, keeping the more recently updated record, and uploaded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if retries < 0 || retries > MaxRetries {
				return fmt.Errorf("--retries must be between 0 and %d", MaxRetries)
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				return runSync(cmd, d, retries)
			})
		},
	}

	cmd.Flags().IntVarP(&retries, "retries", "r", 0, "Attempts before giving up (default from config)")

	return cmd
}

func runSync(cmd *cobra.Command, d *Deps, retries int) error {
	report, err := d.SyncHandler(retries).Handle(cmd.Context(), d.UserID)
	if err != nil {
		if report != nil && report.Result.Failed() {
			fmt.Printf("Sync failed after %d attempt(s): %s\n", report.Attempts, report.Result.Message())
		}
		return err
	}

	if report.Skipped {
		fmt.Println("No remote store configured (set remote.provider in .bookspace/config.yaml).")
		return nil
	}

	res := report.Result
	fmt.Printf("Sync complete: %s\n", res.Message())
	fmt.Printf("  Version: %d\n", res.Dataset.Version)
	fmt.Printf("  Records: %d\n", res.Dataset.Len())
	if report.Attempts > 1 {
		fmt.Printf("  Attempts: %d\n", report.Attempts)
	}
	return nil
}
