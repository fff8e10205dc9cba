package handlers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/bookspace/internal/domain/entities"
)

func newTestRecordsHandler(env *testEnv) *RecordsHandler {
	h := NewRecordsHandler(env.workspace, env.activity)
	h.now = func() time.Time { return testNow }
	return h
}

func TestRecordsHandler_Put_CreatesWithID(t *testing.T) {
	env := newTestEnv(t, nil)
	h := newTestRecordsHandler(env)

	res, err := h.Put(t.Context(), entities.CollectionClients, entities.Record{"nombre": "Ana"})

	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEmpty(t, res.Record.ID())
	assert.Equal(t, testNow.Format(time.RFC3339Nano), res.Record[entities.FieldUpdatedAt])
	assert.Equal(t, entities.ActivityClientCreate, res.Activity)

	list, err := h.List(t.Context(), entities.CollectionClients)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0]["nombre"])

	entries := env.activity.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Ana", entries[0].EntityName)
	assert.Equal(t, res.Record.ID(), entries[0].EntityID)
}

func TestRecordsHandler_Put_UpdatesExisting(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedLocal(t, datasetWith(3, entities.CollectionClients,
		entities.Record{"id": "c1", "nombre": "Ana"},
		entities.Record{"id": "c2", "nombre": "Luis"},
	))
	h := newTestRecordsHandler(env)

	res, err := h.Put(t.Context(), entities.CollectionClients, entities.Record{"id": "c1", "nombre": "Ana María"})

	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, entities.ActivityClientUpdate, res.Activity)

	list, err := h.List(t.Context(), entities.CollectionClients)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ID(), "updated record keeps its position")
	assert.Equal(t, "Ana María", list[0]["nombre"])
}

func TestRecordsHandler_Put_StatusChange(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		old        entities.Record
		next       entities.Record
		want       entities.ActivityType
	}{
		{
			name:       "lead status changed",
			collection: entities.CollectionLeads,
			old:        entities.Record{"id": "l1", "nombre": "Boda", "estado": "nuevo"},
			next:       entities.Record{"id": "l1", "nombre": "Boda", "estado": "ganado"},
			want:       entities.ActivityLeadStatusChange,
		},
		{
			name:       "lead status unchanged",
			collection: entities.CollectionLeads,
			old:        entities.Record{"id": "l1", "estado": "nuevo"},
			next:       entities.Record{"id": "l1", "estado": "nuevo", "venue": "Casa"},
			want:       entities.ActivityLeadUpdate,
		},
		{
			name:       "invoice paid",
			collection: entities.CollectionInvoices,
			old:        entities.Record{"id": "f1", "numero": "F-001", "estado": "pendiente"},
			next:       entities.Record{"id": "f1", "numero": "F-001", "estado": "pagada"},
			want:       entities.ActivityInvoiceStatusChange,
		},
		{
			name:       "client has no status",
			collection: entities.CollectionClients,
			old:        entities.Record{"id": "c1", "estado": "a"},
			next:       entities.Record{"id": "c1", "estado": "b"},
			want:       entities.ActivityClientUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.seedLocal(t, datasetWith(1, tt.collection, tt.old))
			h := newTestRecordsHandler(env)

			res, err := h.Put(t.Context(), tt.collection, tt.next)

			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Activity)
		})
	}
}

func TestRecordsHandler_Put_StatusChangeKeepsOldStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedLocal(t, datasetWith(1, entities.CollectionLeads, entities.Record{"id": "l1", "estado": "nuevo"}))
	h := newTestRecordsHandler(env)

	_, err := h.Put(t.Context(), entities.CollectionLeads, entities.Record{"id": "l1", "estado": "ganado"})
	require.NoError(t, err)

	entries := env.activity.FilterByType(entities.ActivityLeadStatusChange)
	require.Len(t, entries, 1)
	assert.Equal(t, "nuevo", entries[0].Details["oldStatus"])
	assert.Equal(t, "ganado", entries[0].Details["estado"])
}

func TestRecordsHandler_UnknownCollection(t *testing.T) {
	env := newTestEnv(t, nil)
	h := newTestRecordsHandler(env)

	_, err := h.Put(t.Context(), "widgets", entities.Record{"id": "w1"})

	var vErr *entities.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "collection", vErr.Field)

	_, err = h.List(t.Context(), "widgets")
	assert.Error(t, err)
	assert.Error(t, h.Delete(t.Context(), "widgets", "w1"))
	assert.Empty(t, env.activity.Entries())
}

func TestRecordsHandler_Delete(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedLocal(t, datasetWith(1, entities.CollectionMeetings,
		entities.Record{"id": "m1", "titulo": "Kickoff"},
		entities.Record{"id": "m2", "titulo": "Review"},
	))
	h := newTestRecordsHandler(env)

	require.NoError(t, h.Delete(t.Context(), entities.CollectionMeetings, "m1"))

	list, err := h.List(t.Context(), entities.CollectionMeetings)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m2", list[0].ID())

	entries := env.activity.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, entities.ActivityMeetingDelete, entries[0].Type)
	assert.Equal(t, "Kickoff", entries[0].EntityName)
}

func TestRecordsHandler_Delete_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	h := newTestRecordsHandler(env)

	err := h.Delete(t.Context(), entities.CollectionMeetings, "missing")

	require.ErrorIs(t, err, ErrRecordNotFound)
	assert.Empty(t, env.activity.Entries())
	assert.False(t, env.sync.SavePending())
}

func TestRecordsHandler_Import(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedLocal(t, datasetWith(1, entities.CollectionClients, entities.Record{"id": "c1", "nombre": "Old"}))
	h := newTestRecordsHandler(env)

	path := filepath.Join(t.TempDir(), "clients.csv")
	content := "id,nombre,telefono\nc1,Ana,0600111222\n,Luis,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	res, err := h.Import(t.Context(), entities.CollectionClients, path, ImportOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)

	list, err := h.List(t.Context(), entities.CollectionClients)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0]["nombre"])
	assert.Equal(t, "0600111222", list[0]["telefono"])
	assert.NotEmpty(t, list[1].ID())
	assert.NotContains(t, list[1], "telefono")
}

func TestRecordsHandler_Import_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	h := newTestRecordsHandler(env)
	dir := t.TempDir()

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := h.Import(t.Context(), entities.CollectionClients, filepath.Join(dir, "clients.txt"), ImportOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported format")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := h.Import(t.Context(), entities.CollectionClients, filepath.Join(dir, "absent.json"), ImportOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening file")
	})

	t.Run("malformed json with explicit format", func(t *testing.T) {
		path := filepath.Join(dir, "clients.txt")
		require.NoError(t, os.WriteFile(path, []byte(`{"id":"c1"}`), 0644))

		_, err := h.Import(t.Context(), entities.CollectionClients, path, ImportOptions{Format: "json"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing file")
	})
}
