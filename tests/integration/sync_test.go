package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/bookspace/internal/application/handlers"
	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/services"
	"github.com/ersonp/bookspace/internal/infrastructure/remotestore/memory"
)

const testUser = "user-integration"

func TestSync_Integration_TwoDevices(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := t.Context()
	remote := memory.NewStore()

	laptop := newDevice(t, dbPath(t, "laptop"), remote, testUser)
	phone := newDevice(t, dbPath(t, "phone"), remote, testUser)

	// Laptop creates a client and uploads.
	created, err := laptop.records.Put(ctx, entities.CollectionClients, entities.Record{"nombre": "Ana"})
	require.NoError(t, err)
	report, err := laptop.syncer.Handle(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncUploaded, report.Result.Action)
	v1 := report.Result.Dataset.Version
	require.Positive(t, v1)

	// Phone has never synced and downloads.
	report, err = phone.syncer.Handle(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncDownloaded, report.Result.Action)
	assert.Equal(t, v1, phone.workspace.Snapshot(ctx).Version)

	// Phone edits at the same version and merges.
	_, err = phone.records.Put(ctx, entities.CollectionClients, entities.Record{"id": created.Record.ID(), "nombre": "Ana María"})
	require.NoError(t, err)
	_, err = phone.records.Put(ctx, entities.CollectionLeads, entities.Record{"id": "l1", "nombre": "Boda", "estado": "nuevo"})
	require.NoError(t, err)
	report, err = phone.syncer.Handle(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncMerged, report.Result.Action)
	v2 := report.Result.Dataset.Version
	assert.Greater(t, v2, v1)

	// Laptop is behind and downloads the phone's changes.
	report, err = laptop.syncer.Handle(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncDownloaded, report.Result.Action)

	clients, err := laptop.records.List(ctx, entities.CollectionClients)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Ana María", clients[0]["nombre"])

	leads, err := laptop.records.List(ctx, entities.CollectionLeads)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, v2, laptop.workspace.Snapshot(ctx).Version)
}

func TestSync_Integration_PersistsAcrossRestarts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := t.Context()
	remote := memory.NewStore()
	path := dbPath(t, "desk")

	first := newDevice(t, path, remote, testUser)
	_, err := first.records.Put(ctx, entities.CollectionMeetings, entities.Record{"id": "m1", "titulo": "Kickoff"})
	require.NoError(t, err)
	report, err := first.syncer.Handle(ctx, testUser)
	require.NoError(t, err)

	// A pending debounced save is flushed on close.
	_, err = first.records.Put(ctx, entities.CollectionMeetings, entities.Record{"id": "m2", "titulo": "Review"})
	require.NoError(t, err)
	first.sync.Close()
	require.NoError(t, first.store.Close())

	second := newDevice(t, path, remote, testUser)
	snap := second.workspace.Snapshot(ctx)
	assert.Equal(t, report.Result.Dataset.Version, snap.Version)
	assert.Len(t, snap.Meetings, 2)

	entries := second.activity.LoadInitial(ctx, "")
	assert.Len(t, entries, 3, "two creates and one sync")
}

func TestSync_Integration_NewerRemoteWinsOutright(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := t.Context()
	remote := memory.NewStore()

	a := newDevice(t, dbPath(t, "a"), remote, testUser)
	b := newDevice(t, dbPath(t, "b"), remote, testUser)

	_, err := a.syncer.Handle(ctx, testUser)
	require.NoError(t, err)
	_, err = b.syncer.Handle(ctx, testUser)
	require.NoError(t, err)

	// Both edit at the same version; a syncs first and moves the version on.
	_, err = a.records.Put(ctx, entities.CollectionClients, entities.Record{"id": "from-a"})
	require.NoError(t, err)
	_, err = b.records.Put(ctx, entities.CollectionClients, entities.Record{"id": "from-b"})
	require.NoError(t, err)

	_, err = a.syncer.Handle(ctx, testUser)
	require.NoError(t, err)
	report, err := b.syncer.Handle(ctx, testUser)
	require.NoError(t, err)

	assert.Equal(t, entities.SyncDownloaded, report.Result.Action)
	clients, err := b.records.List(ctx, entities.CollectionClients)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "from-a", clients[0].ID())
}

func TestWatch_Integration_AdoptsRemoteUpload(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	remote := memory.NewStore()

	writer := newDevice(t, dbPath(t, "writer"), remote, testUser)
	follower := newDevice(t, dbPath(t, "follower"), remote, testUser)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	adopted := make(chan int64, 4)
	activity := make(chan []entities.ActivityEntry, 16)
	done := make(chan error, 1)
	go func() {
		done <- follower.watcher.Run(ctx, testUser, handlers.WatchCallbacks{
			OnDataset: func(ds *entities.Dataset, ok bool) {
				if ok {
					adopted <- ds.Version
				}
			},
			OnActivity: func(entries []entities.ActivityEntry) {
				activity <- entries
			},
		})
	}()

	// Wait for the initial activity snapshot so the subscriptions are live.
	select {
	case <-activity:
	case <-time.After(time.Second):
		t.Fatal("watch did not start")
	}

	_, err := writer.records.Put(t.Context(), entities.CollectionInvoices, entities.Record{"id": "f1", "numero": "F-001"})
	require.NoError(t, err)
	report, err := writer.syncer.Handle(t.Context(), testUser)
	require.NoError(t, err)

	select {
	case v := <-adopted:
		assert.Equal(t, report.Result.Dataset.Version, v)
	case <-time.After(time.Second):
		t.Fatal("remote upload was not adopted")
	}

	invoices, err := follower.records.List(t.Context(), entities.CollectionInvoices)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "F-001", invoices[0]["numero"])

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestTasks_Integration_SharedBetweenUsers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	remote := memory.NewStore()
	owner := handlers.NewTasksHandler(services.NewTaskService(remote))
	assignee := handlers.NewTasksHandler(services.NewTaskService(remote))

	seen := make(chan []entities.Task, 8)
	done := make(chan error, 1)
	go func() {
		done <- assignee.Watch(ctx, "luis", func(tasks []entities.Task) { seen <- tasks })
	}()
	select {
	case tasks := <-seen:
		require.Empty(t, tasks)
	case <-time.After(time.Second):
		t.Fatal("watch did not start")
	}

	id, err := owner.Save(t.Context(), "ana", handlers.TaskInput{
		Fields:    map[string]any{"title": "Print menus"},
		Assignees: []string{"luis"},
	})
	require.NoError(t, err)

	select {
	case tasks := <-seen:
		require.Len(t, tasks, 1)
		assert.Equal(t, id, tasks[0].ID)
		assert.Equal(t, []string{"ana", "luis"}, tasks[0].SharedWith)
	case <-time.After(time.Second):
		t.Fatal("shared task was not delivered")
	}

	require.NoError(t, assignee.Delete(t.Context(), "luis", id))
	select {
	case tasks := <-seen:
		assert.Empty(t, tasks)
	case <-time.After(time.Second):
		t.Fatal("deletion was not delivered")
	}

	cancel()
	require.NoError(t, <-done)
}
