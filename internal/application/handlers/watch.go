package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/services"
	"github.com/ersonp/bookspace/internal/infrastructure/logging"
)

// WatchCallbacks receive live updates. Either may be nil.
type WatchCallbacks struct {
	// OnDataset receives every remote dataset snapshot. adopted is true when
	// the snapshot was newer than the local dataset and replaced it.
	OnDataset func(ds *entities.Dataset, adopted bool)
	// OnActivity receives the combined activity view after each remote change.
	OnActivity func(entries []entities.ActivityEntry)
}

// WatchHandler follows the remote dataset and activity log of a user.
type WatchHandler struct {
	workspace *Workspace
	sync      *services.SyncService
	activity  *services.ActivityService
	logger    *slog.Logger
}

// NewWatchHandler creates a new watch handler. A nil logger means the one
// carried by the context passed to Run.
func NewWatchHandler(workspace *Workspace, syncService *services.SyncService, activity *services.ActivityService, logger *slog.Logger) *WatchHandler {
	return &WatchHandler{
		workspace: workspace,
		sync:      syncService,
		activity:  activity,
		logger:    logger,
	}
}

// Run subscribes until ctx is done. Remote snapshots with a higher version
// than the local dataset replace it.
func (h *WatchHandler) Run(ctx context.Context, userID string, cb WatchCallbacks) error {
	if !h.sync.RemoteConfigured() {
		return entities.ErrNotConfigured
	}
	if userID == "" {
		return ErrNoUser
	}

	logger := h.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	var mu sync.Mutex
	unsubData, err := h.sync.Subscribe(ctx, userID, func(remote *entities.Dataset) {
		mu.Lock()
		defer mu.Unlock()

		adopted := h.adoptIfNewer(ctx, logger, remote)
		if cb.OnDataset != nil {
			cb.OnDataset(remote, adopted)
		}
	})
	if err != nil {
		return err
	}
	defer unsubData()

	unsubActivity, err := h.activity.Subscribe(ctx, userID, func(entries []entities.ActivityEntry) {
		mu.Lock()
		defer mu.Unlock()

		if cb.OnActivity != nil {
			cb.OnActivity(entries)
		}
	})
	if err != nil {
		return err
	}
	defer unsubActivity()

	<-ctx.Done()
	return nil
}

func (h *WatchHandler) adoptIfNewer(ctx context.Context, logger *slog.Logger, remote *entities.Dataset) bool {
	local := h.workspace.Snapshot(ctx)
	if remote.Version <= local.Version {
		return false
	}
	if err := h.workspace.Adopt(ctx, remote); err != nil {
		logger.WarnContext(ctx, "adopting remote dataset", "version", remote.Version, "error", err)
		return false
	}
	logger.InfoContext(ctx, "adopted remote dataset", "version", remote.Version, "records", remote.Len())
	return true
}
