package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/services"
)

// ErrNoUser is returned when a remote operation runs for a profile without
// a user id.
var ErrNoUser = errors.New("profile has no user id (set one with 'bookspace profiles create --user')")

// SyncHandler runs one synchronization of the local dataset.
type SyncHandler struct {
	workspace *Workspace
	sync      *services.SyncService
	activity  *services.ActivityService
	retryer   *services.Retryer
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(workspace *Workspace, syncService *services.SyncService, activity *services.ActivityService, retryer *services.Retryer) *SyncHandler {
	return &SyncHandler{
		workspace: workspace,
		sync:      syncService,
		activity:  activity,
		retryer:   retryer,
	}
}

// SyncReport contains the result of a sync run.
type SyncReport struct {
	Result   entities.SyncResult
	Attempts int
	// Skipped is set when no remote store is configured.
	Skipped bool
}

// Handle synchronizes the dataset of userID, retrying failed attempts, and
// adopts the result locally.
func (h *SyncHandler) Handle(ctx context.Context, userID string) (*SyncReport, error) {
	if !h.sync.RemoteConfigured() {
		return &SyncReport{Skipped: true}, nil
	}
	if userID == "" {
		return nil, ErrNoUser
	}

	local := h.workspace.Snapshot(ctx)

	res, retry := services.DoWithResult(ctx, h.retryer, func(ctx context.Context) (entities.SyncResult, error) {
		r := h.sync.Synchronize(ctx, userID, local, local.Version)
		return r, r.Err
	})
	if retry.LastErr != nil {
		// The failed attempt is only kept by the synchronizer.
		return &SyncReport{Result: h.sync.LastResult(), Attempts: retry.Attempts}, retry.LastErr
	}

	report := &SyncReport{Result: res, Attempts: retry.Attempts}

	if err := h.workspace.Adopt(ctx, res.Dataset); err != nil {
		return report, fmt.Errorf("saving synchronized dataset: %w", err)
	}
	if _, err := h.activity.LogSystem(ctx, entities.ActivityDataSync, ""); err != nil {
		return report, err
	}
	return report, nil
}

// RetryRemoteFailures retries only remote store failures.
func RetryRemoteFailures(err error) bool {
	return errors.Is(err, entities.ErrRemoteFailure)
}
