package handlers

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/mocks"
	"github.com/ersonp/bookspace/internal/domain/ports"
	"github.com/ersonp/bookspace/internal/domain/services"
)

func newTestRetryer(attempts int) *services.Retryer {
	return services.NewRetryer(services.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		RetryIf:        RetryRemoteFailures,
	})
}

// uploadFromOtherDevice stores ds remotely the way another installation
// would, stamped with the given clock.
func uploadFromOtherDevice(t *testing.T, remote *mocks.RemoteStore, userID string, ds *entities.Dataset, at time.Time) int64 {
	t.Helper()
	other := services.NewSyncService(mocks.NewLocalStore(), remote, services.WithClock(func() time.Time { return at }))
	version, err := other.Upload(t.Context(), userID, ds)
	require.NoError(t, err)
	return version
}

func TestSyncHandler_NoRemote(t *testing.T) {
	env := newTestEnv(t, nil)
	h := NewSyncHandler(env.workspace, env.sync, env.activity, newTestRetryer(1))

	report, err := h.Handle(t.Context(), "user-1")

	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Empty(t, env.activity.Entries())
}

func TestSyncHandler_NoUser(t *testing.T) {
	env := newTestEnv(t, mocks.NewRemoteStore())
	h := NewSyncHandler(env.workspace, env.sync, env.activity, newTestRetryer(1))

	_, err := h.Handle(t.Context(), "")

	assert.ErrorIs(t, err, ErrNoUser)
}

func TestSyncHandler_UploadsWhenRemoteEmpty(t *testing.T) {
	remote := mocks.NewRemoteStore()
	env := newTestEnv(t, remote)
	env.seedLocal(t, datasetWith(0, entities.CollectionClients, entities.Record{"id": "c1"}))
	h := NewSyncHandler(env.workspace, env.sync, env.activity, newTestRetryer(1))

	report, err := h.Handle(t.Context(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, entities.SyncUploaded, report.Result.Action)
	assert.Equal(t, 1, report.Attempts)
	assert.Equal(t, testNow.UnixMilli(), report.Result.Dataset.Version)

	doc, ok := remote.Document(ports.UsersDataCollection, "user-1")
	require.True(t, ok)
	assert.Equal(t, testNow.UnixMilli(), doc["version"])

	assert.Equal(t, testNow.UnixMilli(), env.workspace.Snapshot(t.Context()).Version)
	assert.Equal(t, testNow.UnixMilli(), env.savedDataset(t).Version)
	assert.Len(t, env.activity.FilterByType(entities.ActivityDataSync), 1)
}

func TestSyncHandler_AdoptsNewerRemote(t *testing.T) {
	remote := mocks.NewRemoteStore()
	env := newTestEnv(t, remote)

	remoteVersion := uploadFromOtherDevice(t, remote, "user-1",
		datasetWith(0, entities.CollectionClients, entities.Record{"id": "from-phone"}), testNow.Add(time.Hour))
	env.seedLocal(t, datasetWith(remoteVersion-1, entities.CollectionClients, entities.Record{"id": "local-only"}))

	h := NewSyncHandler(env.workspace, env.sync, env.activity, newTestRetryer(1))
	report, err := h.Handle(t.Context(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, entities.SyncDownloaded, report.Result.Action)

	snap := env.workspace.Snapshot(t.Context())
	assert.Equal(t, remoteVersion, snap.Version)
	require.Len(t, snap.Clients, 1)
	assert.Equal(t, "from-phone", snap.Clients[0].ID())
}

func TestSyncHandler_MergesEqualVersions(t *testing.T) {
	remote := mocks.NewRemoteStore()
	env := newTestEnv(t, remote)

	version := uploadFromOtherDevice(t, remote, "user-1",
		datasetWith(0, entities.CollectionLeads, entities.Record{"id": "l2"}), testNow.Add(-time.Hour))
	env.seedLocal(t, datasetWith(version, entities.CollectionLeads, entities.Record{"id": "l1"}))

	h := NewSyncHandler(env.workspace, env.sync, env.activity, newTestRetryer(1))
	report, err := h.Handle(t.Context(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, entities.SyncMerged, report.Result.Action)

	snap := env.workspace.Snapshot(t.Context())
	require.Len(t, snap.Leads, 2)
	assert.Equal(t, "l1", snap.Leads[0].ID())
	assert.Equal(t, "l2", snap.Leads[1].ID())
	assert.Greater(t, snap.Version, version)
}

func TestSyncHandler_RetriesRemoteFailures(t *testing.T) {
	remote := mocks.NewRemoteStore()
	remote.GetErr = errors.New("unavailable")
	remote.SetErr = errors.New("unavailable")
	env := newTestEnv(t, remote)
	env.seedLocal(t, datasetWith(4, entities.CollectionClients, entities.Record{"id": "c1"}))

	h := NewSyncHandler(env.workspace, env.sync, env.activity, newTestRetryer(3))
	report, err := h.Handle(t.Context(), "user-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrRemoteFailure)
	assert.Equal(t, 3, report.Attempts)
	assert.True(t, report.Result.Failed())
	assert.Equal(t, "could not sync, will retry", report.Result.Message())
	assert.Equal(t, 3, remote.SetCallCount)
	assert.Equal(t, int64(4), env.workspace.Snapshot(t.Context()).Version)
	assert.Empty(t, env.activity.FilterByType(entities.ActivityDataSync))
}

func TestRetryRemoteFailures(t *testing.T) {
	assert.True(t, RetryRemoteFailures(entities.RemoteFailure("upload", errors.New("timeout"))))
	assert.True(t, RetryRemoteFailures(fmt.Errorf("wrapped: %w", entities.ErrRemoteFailure)))
	assert.False(t, RetryRemoteFailures(entities.ErrNotConfigured))
	assert.False(t, RetryRemoteFailures(errors.New("other")))
}
