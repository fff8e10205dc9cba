package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# Bookspace Configuration

local:
  driver: sqlite          # sqlite or memory
  compress: true          # snappy-compress stored values
  # path: /custom/path/bookspace.db

remote:
  provider: none          # none, memory, mongo, dynamodb or qdrant
  mongo:
    uri: mongodb://localhost:27017   # or set BOOKSPACE_MONGO_URI
    database: bookspace
  dynamodb:
    region: us-east-1                # or set AWS_REGION
    documents_table: bookspace_documents
    activity_table: bookspace_activity
    # endpoint: http://localhost:8000
  qdrant:
    host: localhost
    port: 6334
    # api_key: your-api-key (or set QDRANT_API_KEY env var)

sync:
  debounce: 1s
  poll_interval: 5s
  retries: 3
  retry_backoff: 1s

activity:
  max_entries: 100
  remote_limit: 100

backup:
  s3:
    # bucket: my-backups
    # region: us-east-1
    # endpoint: http://localhost:9000
    prefix: backups/
    # use_path_style: true

log:
  level: info             # debug, info, warn or error (or BOOKSPACE_LOG_LEVEL)
  format: text            # text or json
`

// WriteDefault creates the .bookspace directory and writes a default config file.
func WriteDefault(basePath string) error {
	configDir := ConfigDir(basePath)
	configFile := ConfigFilePath(basePath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes the given config to the config file.
func Write(basePath string, cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(basePath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ConfigFilePath(basePath), data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
