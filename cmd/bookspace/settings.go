package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change the synced business settings",
		Long: "Manages the free-form settings stored with the dataset, such as the company name " +
			"(empresa). These settings sync with the data. Infrastructure settings live in " +
			".bookspace/config.yaml instead.",
	}

	cmd.AddCommand(
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigUnsetCmd(),
	)

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [KEY]",
		Short: "Print one setting or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				settings := d.Settings.Get(cmd.Context())
				if len(args) == 0 {
					return writeJSON(os.Stdout, settings)
				}
				v, ok := settings[args[0]]
				if !ok {
					return fmt.Errorf("no such setting: %s", args[0])
				}
				return writeJSON(os.Stdout, v)
			})
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a setting",
		Long:  "Sets KEY to VALUE. Values that parse as JSON (numbers, true, objects) are stored decoded.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				settings, err := d.Settings.Set(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Printf("Set %s (%d settings)\n", args[0], len(settings))
				return nil
			})
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				if err := d.Settings.Unset(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("Removed %s\n", args[0])
				return nil
			})
		},
	}
}
