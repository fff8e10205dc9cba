package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/bookspace/internal/application/handlers"
	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/infrastructure/logging"
)

const activityTimeLayout = "2006-01-02 15:04"

func newActivityCmd() *cobra.Command {
	var (
		filter handlers.ActivityFilter
		typ    string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the activity log",
		Long: "Lists recent events, newest first. Remote entries are included when the profile has a user id " +
			"and a remote store is configured. Categories: transactions, clients, providers, employees, " +
			"leads, invoices, meetings, config, system.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if typ != "" {
				filter.Type = entities.ActivityType(typ)
				if !filter.Type.IsValid() {
					return fmt.Errorf("invalid type %q, valid types: %v", typ, entities.ActivityTypes())
				}
			}
			if filter.Hours < 0 || filter.Limit < 0 {
				return fmt.Errorf("--hours and --limit must not be negative")
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				ctx := logging.WithLogger(cmd.Context(), d.Logger)
				entries := d.Activity.List(ctx, d.UserID, filter)
				if asJSON {
					return writeJSON(os.Stdout, entries)
				}
				displayActivity(os.Stdout, entries)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", "", "Only entries of this type")
	cmd.Flags().StringVarP(&filter.Category, "category", "c", "", "Only entries of this category")
	cmd.Flags().IntVar(&filter.Hours, "hours", 0, "Only entries from the last N hours")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "l", DefaultActivityLimit, "Maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the entries as JSON")

	return cmd
}

func displayActivity(w io.Writer, entries []entities.ActivityEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No activity found.")
		return
	}
	for _, e := range entries {
		fmt.Fprintln(w, formatActivity(e))
	}
}

// formatActivity renders one entry as a single line.
func formatActivity(e entities.ActivityEntry) string {
	when := "pending"
	if t := e.EventTime(); !t.IsZero() {
		when = t.In(time.Local).Format(activityTimeLayout)
	}

	line := fmt.Sprintf("%s  %-22s %s", when, e.Type, e.Description)
	if e.EntityName != "" && e.EntityName != e.Description {
		line += ": " + e.EntityName
	}
	if e.IsLocal {
		line += " (local)"
	}
	return line
}
