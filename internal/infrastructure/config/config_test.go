package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeProfileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "shop",
			expected: "shop",
		},
		{
			name:     "uppercase converted",
			input:    "MyShop",
			expected: "myshop",
		},
		{
			name:     "spaces to underscores",
			input:    "my shop",
			expected: "my_shop",
		},
		{
			name:     "special characters removed",
			input:    "my@shop!",
			expected: "myshop",
		},
		{
			name:     "leading trailing underscores trimmed",
			input:    "-my--shop-",
			expected: "my_shop",
		},
		{
			name:     "empty string returns default",
			input:    "",
			expected: "default",
		},
		{
			name:     "only special chars returns default",
			input:    "!!!",
			expected: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeProfileName(tt.input))
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, LocalDriverSQLite, cfg.Local.Driver)
	assert.True(t, cfg.Local.Compress)
	assert.Equal(t, RemoteNone, cfg.Remote.Provider)
	assert.False(t, cfg.RemoteEnabled())
	assert.Equal(t, time.Second, cfg.Sync.Debounce)
	assert.Equal(t, 3, cfg.Sync.Retries)
	assert.Equal(t, 100, cfg.Activity.MaxEntries)
	assert.Equal(t, 6334, cfg.Remote.Qdrant.Port)
	assert.NoError(t, cfg.Validate())
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/home/user/project/.bookspace", ConfigDir("/home/user/project"))
	assert.Equal(t, "/home/user/project/.bookspace/config.yaml", ConfigFilePath("/home/user/project"))
	assert.Equal(t, "/home/user/project/.bookspace/profiles.yaml", ProfilesFilePath("/home/user/project"))
	assert.Equal(t, "/p/.bookspace/profiles/my_shop/bookspace.db", SQLitePathForProfile("/p", "My Shop"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bookspace init")

	require.NoError(t, WriteDefault(dir))
	assert.True(t, Exists(dir))
	assert.Error(t, WriteDefault(dir), "second write must not overwrite")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default().Sync, cfg.Sync)
	assert.Equal(t, "bookspace_documents", cfg.Remote.DynamoDB.DocumentsTable)
}

func TestLoad_OverridesAndValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "durations and provider",
			yaml: "remote:\n  provider: mongo\nsync:\n  debounce: 250ms\n  poll_interval: 2s\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, RemoteMongo, cfg.Remote.Provider)
				assert.True(t, cfg.RemoteEnabled())
				assert.Equal(t, 250*time.Millisecond, cfg.Sync.Debounce)
				assert.Equal(t, 2*time.Second, cfg.Sync.PollInterval)
				assert.Equal(t, 3, cfg.Sync.Retries)
			},
		},
		{
			name: "compression can be disabled",
			yaml: "local:\n  driver: memory\n  compress: false\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, LocalDriverMemory, cfg.Local.Driver)
				assert.False(t, cfg.Local.Compress)
			},
		},
		{name: "unknown provider", yaml: "remote:\n  provider: couchdb\n", wantErr: true},
		{name: "unknown driver", yaml: "local:\n  driver: leveldb\n", wantErr: true},
		{name: "malformed yaml", yaml: "local: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.MkdirAll(ConfigDir(dir), 0755))
			require.NoError(t, os.WriteFile(ConfigFilePath(dir), []byte(tt.yaml), 0644))

			cfg, err := Load(dir)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOOKSPACE_MONGO_URI", "mongodb://db:27017")
	t.Setenv("QDRANT_API_KEY", "secret")
	t.Setenv("BOOKSPACE_LOG_LEVEL", "debug")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg := Default()
	cfg.Remote.DynamoDB.Region = ""
	cfg.applyEnvOverrides()

	assert.Equal(t, "mongodb://db:27017", cfg.Remote.Mongo.URI)
	assert.Equal(t, "secret", cfg.Remote.Qdrant.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "eu-west-1", cfg.Remote.DynamoDB.Region)
	assert.Equal(t, "eu-west-1", cfg.Backup.S3.Region)
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Remote.Provider = RemoteQdrant
	cfg.Backup.S3.Bucket = "backups"

	require.NoError(t, Write(dir, cfg))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, RemoteQdrant, loaded.Remote.Provider)
	assert.Equal(t, "backups", loaded.Backup.S3.Bucket)
	assert.Equal(t, cfg.Sync, loaded.Sync)
}

func TestProfiles(t *testing.T) {
	dir := t.TempDir()

	profiles, err := LoadProfiles(dir)
	require.NoError(t, err)
	assert.Empty(t, profiles.Profiles)
	_, err = profiles.Get("shop")
	assert.Error(t, err)

	profiles.Add("shop", ProfileEntry{UserID: "u1", Description: "main shop"})
	profiles.Add("archive", ProfileEntry{})
	require.NoError(t, profiles.Save(dir))

	loaded, err := LoadProfiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "shop"}, loaded.Names())
	assert.True(t, loaded.Exists("shop"))
	assert.Equal(t, "u1", loaded.UserID("shop"))
	assert.Empty(t, loaded.UserID("archive"))
	assert.Empty(t, loaded.UserID("missing"))

	_, err = loaded.Get("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive, shop")

	loaded.Remove("shop")
	assert.False(t, loaded.Exists("shop"))
	assert.FileExists(t, filepath.Join(dir, ".bookspace", "profiles.yaml"))
}
