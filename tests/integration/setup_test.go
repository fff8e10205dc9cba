package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/bookspace/internal/application/handlers"
	"github.com/ersonp/bookspace/internal/domain/ports"
	"github.com/ersonp/bookspace/internal/domain/services"
	"github.com/ersonp/bookspace/internal/infrastructure/config"
	"github.com/ersonp/bookspace/internal/infrastructure/localstore/sqlite"
)

// requireIntegration skips tests that need external services unless
// INTEGRATION_TEST=1.
func requireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "1" {
		t.Skip("set INTEGRATION_TEST=1 to run tests against external services")
	}
}

// device is one installation: its own SQLite database, sharing a remote
// store with the other devices of a test.
type device struct {
	path      string
	store     *sqlite.Store
	sync      *services.SyncService
	activity  *services.ActivityService
	workspace *handlers.Workspace
	records   *handlers.RecordsHandler
	syncer    *handlers.SyncHandler
	watcher   *handlers.WatchHandler
}

func newDevice(t *testing.T, dbPath string, remote ports.RemoteStore, userID string) *device {
	t.Helper()

	store, err := sqlite.NewStore(config.LocalConfig{Path: dbPath, Compress: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSchema(t.Context()))

	syncService := services.NewSyncService(store, remote)
	t.Cleanup(syncService.Close)

	activity := services.NewActivityService(store, remote)
	activity.SetUser(userID)

	workspace := handlers.NewWorkspace(syncService)
	retryer := services.NewRetryer(services.RetryConfig{MaxAttempts: 1})

	return &device{
		path:      dbPath,
		store:     store,
		sync:      syncService,
		activity:  activity,
		workspace: workspace,
		records:   handlers.NewRecordsHandler(workspace, activity),
		syncer:    handlers.NewSyncHandler(workspace, syncService, activity, retryer),
		watcher:   handlers.NewWatchHandler(workspace, syncService, activity, nil),
	}
}

func dbPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}
