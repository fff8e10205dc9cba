// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for bookspace configuration.
	DefaultConfigDir = ".bookspace"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultProfilesFile is the default profiles file name.
	DefaultProfilesFile = "profiles.yaml"
	// DefaultProfile is used when no profile is selected.
	DefaultProfile = "default"
)

// Local store drivers.
const (
	LocalDriverSQLite = "sqlite"
	LocalDriverMemory = "memory"
)

// Remote store providers.
const (
	RemoteNone     = "none"
	RemoteMemory   = "memory"
	RemoteMongo    = "mongo"
	RemoteDynamoDB = "dynamodb"
	RemoteQdrant   = "qdrant"
)

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	Local    LocalConfig    `yaml:"local,omitempty"`
	Remote   RemoteConfig   `yaml:"remote,omitempty"`
	Sync     SyncConfig     `yaml:"sync,omitempty"`
	Activity ActivityConfig `yaml:"activity,omitempty"`
	Backup   BackupConfig   `yaml:"backup,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

// LocalConfig selects the local key/value store.
type LocalConfig struct {
	Driver string `yaml:"driver,omitempty"`
	// Path overrides the per-profile database path computed by SQLitePathForProfile.
	Path     string `yaml:"path,omitempty"`
	Compress bool   `yaml:"compress"`
}

// RemoteConfig selects and configures the remote document store.
type RemoteConfig struct {
	Provider string         `yaml:"provider,omitempty"`
	Mongo    MongoConfig    `yaml:"mongo,omitempty"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb,omitempty"`
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
}

// MongoConfig holds configuration for the MongoDB remote.
type MongoConfig struct {
	URI      string `yaml:"uri,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// DynamoDBConfig holds configuration for the DynamoDB remote.
type DynamoDBConfig struct {
	Region         string `yaml:"region,omitempty"`
	Endpoint       string `yaml:"endpoint,omitempty"`
	DocumentsTable string `yaml:"documents_table,omitempty"`
	ActivityTable  string `yaml:"activity_table,omitempty"`
}

// QdrantConfig holds configuration for the Qdrant remote.
type QdrantConfig struct {
	Host   string `yaml:"host,omitempty"`
	Port   int    `yaml:"port,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
}

// SyncConfig tunes the synchronizer and the sync command.
type SyncConfig struct {
	Debounce     time.Duration `yaml:"debounce,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	Retries      int           `yaml:"retries,omitempty"`
	RetryBackoff time.Duration `yaml:"retry_backoff,omitempty"`
}

// ActivityConfig bounds the activity log.
type ActivityConfig struct {
	MaxEntries  int `yaml:"max_entries,omitempty"`
	RemoteLimit int `yaml:"remote_limit,omitempty"`
}

// BackupConfig holds export upload targets.
type BackupConfig struct {
	S3 S3Config `yaml:"s3,omitempty"`
}

// S3Config holds configuration for S3 backup uploads.
type S3Config struct {
	Bucket       string `yaml:"bucket,omitempty"`
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	Prefix       string `yaml:"prefix,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
	// Static credentials. Leave empty to use the default AWS credential chain.
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Local: LocalConfig{
			Driver:   LocalDriverSQLite,
			Compress: true,
		},
		Remote: RemoteConfig{
			Provider: RemoteNone,
			Mongo: MongoConfig{
				URI:      "mongodb://localhost:27017",
				Database: "bookspace",
			},
			DynamoDB: DynamoDBConfig{
				Region:         "us-east-1",
				DocumentsTable: "bookspace_documents",
				ActivityTable:  "bookspace_activity",
			},
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
		},
		Sync: SyncConfig{
			Debounce:     time.Second,
			PollInterval: 5 * time.Second,
			Retries:      3,
			RetryBackoff: time.Second,
		},
		Activity: ActivityConfig{
			MaxEntries:  100,
			RemoteLimit: 100,
		},
		Backup: BackupConfig{
			S3: S3Config{Prefix: "backups/"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the .bookspace directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'bookspace init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if uri := os.Getenv("BOOKSPACE_MONGO_URI"); uri != "" {
		c.Remote.Mongo.URI = uri
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		if c.Remote.DynamoDB.Region == "" {
			c.Remote.DynamoDB.Region = region
		}
		if c.Backup.S3.Region == "" {
			c.Backup.S3.Region = region
		}
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		if c.Remote.Qdrant.APIKey == "" {
			c.Remote.Qdrant.APIKey = key
		}
	}
	if level := os.Getenv("BOOKSPACE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Local.Driver {
	case LocalDriverSQLite, LocalDriverMemory:
	default:
		return fmt.Errorf("invalid local.driver %q (want sqlite or memory)", c.Local.Driver)
	}
	switch c.Remote.Provider {
	case "", RemoteNone, RemoteMemory, RemoteMongo, RemoteDynamoDB, RemoteQdrant:
	default:
		return fmt.Errorf("invalid remote.provider %q (want none, memory, mongo, dynamodb or qdrant)", c.Remote.Provider)
	}
	if c.Activity.MaxEntries < 0 || c.Activity.RemoteLimit < 0 {
		return fmt.Errorf("activity limits must not be negative")
	}
	return nil
}

// RemoteEnabled reports whether a remote provider is selected.
func (c *Config) RemoteEnabled() bool {
	return c.Remote.Provider != "" && c.Remote.Provider != RemoteNone
}

// ConfigDir returns the path to the .bookspace config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// ProfilesFilePath returns the path to the profiles file.
func ProfilesFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultProfilesFile)
}

// Exists checks if a bookspace config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}

// SanitizeProfileName converts a profile name to a safe directory name.
func SanitizeProfileName(name string) string {
	name = strings.ToLower(name)

	// Replace spaces and hyphens with underscores
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	name = reNonAlphanumeric.ReplaceAllString(name, "")
	name = reMultipleUnderscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		return DefaultProfile
	}

	return name
}

// SQLitePathForProfile returns the SQLite database path for a given profile.
func SQLitePathForProfile(basePath, profile string) string {
	return filepath.Join(ProfileDir(basePath, profile), "bookspace.db")
}

// ProfileDir returns the directory path for a given profile.
func ProfileDir(basePath, profile string) string {
	return filepath.Join(basePath, DefaultConfigDir, "profiles", SanitizeProfileName(profile))
}
