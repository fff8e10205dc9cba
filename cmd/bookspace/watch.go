package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/bookspace/internal/application/handlers"
	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/infrastructure/logging"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow remote changes in real time",
		Long: "Subscribes to the profile's remote dataset and activity log. Newer remote datasets replace " +
			"the local one as they arrive. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				fmt.Printf("Watching profile %q (user %s). Press Ctrl+C to stop.\n", d.Profile, d.UserID)
				w := &watchPrinter{out: os.Stdout}
				ctx := logging.WithLogger(cmd.Context(), d.Logger)
				err := d.Watch.Run(ctx, d.UserID, handlers.WatchCallbacks{
					OnDataset:  w.dataset,
					OnActivity: w.activity,
				})
				if errors.Is(err, entities.ErrNotConfigured) {
					return fmt.Errorf("watch needs a remote store (set remote.provider in .bookspace/config.yaml)")
				}
				return err
			})
		},
	}
}

// watchPrinter prints live updates. It remembers the newest activity entry
// shown so each snapshot only prints what is new.
type watchPrinter struct {
	out      io.Writer
	lastSeen time.Time
}

func (w *watchPrinter) dataset(ds *entities.Dataset, adopted bool) {
	status := "already up to date"
	if adopted {
		status = "applied locally"
	}
	fmt.Fprintf(w.out, "[dataset] version %d, %d records, %s\n", ds.Version, ds.Len(), status)
}

func (w *watchPrinter) activity(entries []entities.ActivityEntry) {
	var fresh []entities.ActivityEntry
	newest := w.lastSeen
	for _, e := range entries {
		t := e.EventTime()
		if e.IsLocal || !t.After(w.lastSeen) {
			continue
		}
		fresh = append(fresh, e)
		if t.After(newest) {
			newest = t
		}
	}
	w.lastSeen = newest

	// Entries arrive newest first; print oldest first.
	for i := len(fresh) - 1; i >= 0; i-- {
		fmt.Fprintf(w.out, "[activity] %s\n", formatActivity(fresh[i]))
	}
}
