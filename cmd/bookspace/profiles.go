package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/bookspace/internal/infrastructure/config"
)

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage profiles",
		RunE:  runProfilesList,
	}

	cmd.AddCommand(
		newProfilesListCmd(),
		newProfilesCreateCmd(),
		newProfilesDeleteCmd(),
	)

	return cmd
}

func newProfilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		RunE:  runProfilesList,
	}
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	cwd, err := initializedDir()
	if err != nil {
		return err
	}

	profiles, err := config.LoadProfiles(cwd)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}

	if len(profiles.Profiles) == 0 {
		fmt.Println("No profiles configured.")
		fmt.Println("Use 'bookspace profiles create NAME' to create a profile.")
		return nil
	}

	fmt.Printf("%-20s %-30s %s\n", "NAME", "USER", "DESCRIPTION")
	fmt.Printf("%-20s %-30s %s\n", "----", "----", "-----------")

	for _, name := range profiles.Names() {
		p := profiles.Profiles[name]
		user := p.UserID
		if user == "" {
			user = "(local only)"
		}
		fmt.Printf("%-20s %-30s %s\n", name, user, p.Description)
	}

	return nil
}

func newProfilesCreateCmd() *cobra.Command {
	var entry config.ProfileEntry

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := initializedDir()
			if err != nil {
				return err
			}
			if err := addProfile(cwd, args[0], entry); err != nil {
				return err
			}
			fmt.Printf("Created profile %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&entry.UserID, "user", "u", "", "Remote user id")
	cmd.Flags().StringVarP(&entry.Description, "description", "d", "", "Profile description")

	return cmd
}

func newProfilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a profile",
		Long:  "Removes the profile entry. Its local database stays on disk.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := initializedDir()
			if err != nil {
				return err
			}
			if err := removeProfile(cwd, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted profile %q (data kept in %s)\n", args[0], config.ProfileDir(cwd, args[0]))
			return nil
		},
	}
}

// addProfile stores a new profile entry.
func addProfile(basePath, name string, entry config.ProfileEntry) error {
	if config.SanitizeProfileName(name) != name {
		return fmt.Errorf("invalid profile name %q (use lowercase letters, digits and underscores, e.g. %q)",
			name, config.SanitizeProfileName(name))
	}

	profiles, err := config.LoadProfiles(basePath)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	if profiles.Exists(name) {
		return fmt.Errorf("profile %q already exists", name)
	}

	profiles.Add(name, entry)
	if err := profiles.Save(basePath); err != nil {
		return fmt.Errorf("saving profiles: %w", err)
	}
	return nil
}

// removeProfile deletes a profile entry.
func removeProfile(basePath, name string) error {
	profiles, err := config.LoadProfiles(basePath)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	if !profiles.Exists(name) {
		return fmt.Errorf("profile %q not found", name)
	}

	profiles.Remove(name)
	if err := profiles.Save(basePath); err != nil {
		return fmt.Errorf("saving profiles: %w", err)
	}
	return nil
}

// initializedDir returns the working directory, which must hold a config.
func initializedDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if !config.Exists(cwd) {
		return "", fmt.Errorf("bookspace not initialized in %s (run 'bookspace init' first)", cwd)
	}
	return cwd, nil
}
