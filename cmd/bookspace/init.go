package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/bookspace/internal/application/handlers"
)

func newInitCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize bookspace in the current directory",
		Long: "Creates a .bookspace directory with the default configuration and a first profile. " +
			"Edit .bookspace/config.yaml afterwards to enable a remote store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, userID)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Remote user id for the first profile")

	return cmd
}

func runInit(cmd *cobra.Command, userID string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	result, err := handlers.NewInitHandler().Handle(cmd.Context(), cwd, handlers.InitOptions{
		Profile: globalProfile,
		UserID:  userID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", result.ConfigPath)
	fmt.Printf("Created profile %q in %s\n", result.Profile, result.ProfilesPath)
	if userID == "" {
		fmt.Println("The profile has no user id; data stays local until one is set.")
	}
	fmt.Println("Bookspace initialized successfully!")

	return nil
}
