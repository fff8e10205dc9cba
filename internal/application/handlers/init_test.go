package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/bookspace/internal/domain/mocks"
	"github.com/ersonp/bookspace/internal/domain/ports"
	"github.com/ersonp/bookspace/internal/infrastructure/config"
)

func TestNewInitHandler(t *testing.T) {
	schema := &mocks.SchemaManager{}

	handler := NewInitHandler(schema)

	require.NotNil(t, handler)
	assert.Equal(t, []ports.SchemaManager{schema}, handler.schemas)
}

func TestInitHandler_Handle_Success(t *testing.T) {
	tmpDir := t.TempDir()

	schema := &mocks.SchemaManager{}

	handler := NewInitHandler(schema)

	result, err := handler.Handle(t.Context(), tmpDir, InitOptions{UserID: "user-1"})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.ConfigPath, "config.yaml")
	assert.Contains(t, result.ProfilesPath, "profiles.yaml")
	assert.Equal(t, config.DefaultProfile, result.Profile)
	assert.Equal(t, 1, schema.EnsureSchemaCallCount)

	// Verify config was created
	assert.True(t, config.Exists(tmpDir))

	profiles, err := config.LoadProfiles(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "user-1", profiles.UserID(config.DefaultProfile))
}

func TestInitHandler_Handle_NamedProfile(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := NewInitHandler().Handle(t.Context(), tmpDir, InitOptions{Profile: "studio"})

	require.NoError(t, err)
	assert.Equal(t, "studio", result.Profile)

	profiles, err := config.LoadProfiles(tmpDir)
	require.NoError(t, err)
	assert.True(t, profiles.Exists("studio"))
	assert.Empty(t, profiles.UserID("studio"))
}

func TestInitHandler_Handle_AlreadyInitialized(t *testing.T) {
	tmpDir := t.TempDir()

	// Initialize first
	err := config.WriteDefault(tmpDir)
	require.NoError(t, err)

	schema := &mocks.SchemaManager{}

	handler := NewInitHandler(schema)

	_, err = handler.Handle(t.Context(), tmpDir, InitOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
	assert.Equal(t, 0, schema.EnsureSchemaCallCount)
}

func TestInitHandler_Handle_SchemaError(t *testing.T) {
	tmpDir := t.TempDir()

	schema := &mocks.SchemaManager{
		EnsureErr: errors.New("connection failed"),
	}

	handler := NewInitHandler(schema)

	_, err := handler.Handle(t.Context(), tmpDir, InitOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating schema")
	assert.Contains(t, err.Error(), "connection failed")
}

func TestEnsureSchemas(t *testing.T) {
	first := &mocks.SchemaManager{}
	failing := &mocks.SchemaManager{EnsureErr: errors.New("boom")}
	last := &mocks.SchemaManager{}

	require.NoError(t, EnsureSchemas(t.Context(), nil, first, nil, last))
	assert.Equal(t, 1, first.EnsureSchemaCallCount)
	assert.Equal(t, 1, last.EnsureSchemaCallCount)

	err := EnsureSchemas(t.Context(), nil, first, failing, last)
	require.Error(t, err)
	assert.Equal(t, 2, first.EnsureSchemaCallCount)
	assert.Equal(t, 1, failing.EnsureSchemaCallCount)
	assert.Equal(t, 1, last.EnsureSchemaCallCount, "stops at the first failure")
}
