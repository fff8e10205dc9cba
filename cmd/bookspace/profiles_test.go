package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/bookspace/internal/infrastructure/config"
)

func TestAddProfile(t *testing.T) {
	tmpDir := t.TempDir()

	// Initialize config first
	err := config.WriteDefault(tmpDir)
	require.NoError(t, err)

	err = addProfile(tmpDir, "studio", config.ProfileEntry{UserID: "u-42", Description: "Studio books"})
	require.NoError(t, err)

	// Verify the profile was added
	profiles, err := config.LoadProfiles(tmpDir)
	require.NoError(t, err)

	assert.True(t, profiles.Exists("studio"))
	assert.Equal(t, "u-42", profiles.UserID("studio"))
	assert.Equal(t, "Studio books", profiles.Profiles["studio"].Description)
}

func TestAddProfile_Duplicate(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, addProfile(tmpDir, "studio", config.ProfileEntry{}))

	err := addProfile(tmpDir, "studio", config.ProfileEntry{UserID: "other"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	profiles, err := config.LoadProfiles(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, profiles.UserID("studio"))
}

func TestAddProfile_InvalidName(t *testing.T) {
	tmpDir := t.TempDir()

	err := addProfile(tmpDir, "My Studio", config.ProfileEntry{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"my_studio"`)
}

func TestRemoveProfile(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, addProfile(tmpDir, "keep", config.ProfileEntry{}))
	require.NoError(t, addProfile(tmpDir, "drop", config.ProfileEntry{}))

	err := removeProfile(tmpDir, "drop")
	require.NoError(t, err)

	profiles, err := config.LoadProfiles(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, profiles.Names())
}

func TestRemoveProfile_NotFound(t *testing.T) {
	tmpDir := t.TempDir()

	err := removeProfile(tmpDir, "ghost")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
