package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/bookspace/internal/domain/entities"
)

func TestSettingsHandler_Set(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  any
	}{
		{name: "number", value: "21", want: float64(21)},
		{name: "bool", value: "true", want: true},
		{name: "quoted string", value: `"EUR"`, want: "EUR"},
		{name: "plain string", value: "Acme Events", want: "Acme Events"},
		{name: "object", value: `{"iva":21}`, want: map[string]any{"iva": float64(21)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			h := NewSettingsHandler(env.workspace, env.activity)

			cfg, err := h.Set(t.Context(), "key", tt.value)

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg["key"])
			assert.Equal(t, tt.want, h.Get(t.Context())["key"])
		})
	}
}

func TestSettingsHandler_Set_LogsCompanyName(t *testing.T) {
	env := newTestEnv(t, nil)
	h := NewSettingsHandler(env.workspace, env.activity)

	_, err := h.Set(t.Context(), "empresa", "Acme Events")
	require.NoError(t, err)

	entries := env.activity.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, entities.ActivityConfigUpdate, entries[0].Type)
	assert.Equal(t, "Acme Events", entries[0].EntityName)
}

func TestSettingsHandler_Set_EmptyKey(t *testing.T) {
	env := newTestEnv(t, nil)
	h := NewSettingsHandler(env.workspace, env.activity)

	_, err := h.Set(t.Context(), "", "x")

	var vErr *entities.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "key", vErr.Field)
	assert.Empty(t, env.activity.Entries())
}

func TestSettingsHandler_Unset(t *testing.T) {
	env := newTestEnv(t, nil)
	ds := entities.NewDataset()
	ds.Config["moneda"] = "EUR"
	ds.Config["iva"] = float64(21)
	env.seedLocal(t, ds)
	h := NewSettingsHandler(env.workspace, env.activity)

	require.NoError(t, h.Unset(t.Context(), "moneda"))

	assert.Equal(t, map[string]any{"iva": float64(21)}, h.Get(t.Context()))
	assert.Len(t, env.activity.Entries(), 1)

	err := h.Unset(t.Context(), "moneda")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such setting")
	assert.Len(t, env.activity.Entries(), 1)
}

func TestSettingsHandler_GetIsCopy(t *testing.T) {
	env := newTestEnv(t, nil)
	h := NewSettingsHandler(env.workspace, env.activity)
	_, err := h.Set(t.Context(), "moneda", "EUR")
	require.NoError(t, err)

	got := h.Get(t.Context())
	got["moneda"] = "USD"

	assert.Equal(t, "EUR", h.Get(t.Context())["moneda"])
}
