// Package main provides the entry point for the bookspace CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version        = "0.1.0-dev"
	globalProfile  string
	globalLogLevel string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "bookspace",
		Short:         "Offline-first business records with cloud sync and an activity log",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalProfile, "profile", "p", "", "Profile to operate on (default \"default\")")
	rootCmd.PersistentFlags().StringVar(&globalLogLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(
		newInitCmd(),
		newProfilesCmd(),
		newRecordsCmd(),
		newConfigCmd(),
		newSyncCmd(),
		newWatchCmd(),
		newExportCmd(),
		newImportCmd(),
		newActivityCmd(),
		newTasksCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
