package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/ports"
	"github.com/ersonp/bookspace/internal/infrastructure/remotestore/memory"
)

func TestActivity_Integration_MirroredAcrossDevices(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := t.Context()
	remote := memory.NewStore()

	office := newDevice(t, dbPath(t, "office"), remote, testUser)
	home := newDevice(t, dbPath(t, "home"), remote, testUser)

	_, err := office.records.Put(ctx, entities.CollectionLeads, entities.Record{"id": "l1", "nombre": "Boda", "estado": "nuevo"})
	require.NoError(t, err)
	_, err = office.records.Put(ctx, entities.CollectionLeads, entities.Record{"id": "l1", "nombre": "Boda", "estado": "ganado"})
	require.NoError(t, err)

	docs, err := remote.Query(ctx, ports.Query{
		Collection: ports.ActivityCollection,
		Filters:    []ports.Filter{{Field: "userId", Value: testUser}},
	})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = home.records.Put(ctx, entities.CollectionClients, entities.Record{"id": "c1", "nombre": "Luis"})
	require.NoError(t, err)

	entries := home.activity.LoadInitial(ctx, testUser)

	// Home's own entries come first; the remote ones follow newest first.
	require.NotEmpty(t, entries)
	assert.Equal(t, entities.ActivityClientCreate, entries[0].Type)

	var remoteTypes []entities.ActivityType
	for _, e := range entries {
		if !e.IsLocal {
			remoteTypes = append(remoteTypes, e.Type)
		}
	}
	assert.Contains(t, remoteTypes, entities.ActivityLeadStatusChange)
	assert.Contains(t, remoteTypes, entities.ActivityLeadCreate)

	statusChanges := home.activity.FilterByType(entities.ActivityLeadStatusChange)
	require.Len(t, statusChanges, 1)
	assert.Equal(t, "nuevo", statusChanges[0].Details["oldStatus"])
}
