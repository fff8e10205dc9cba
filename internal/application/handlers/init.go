package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ersonp/bookspace/internal/domain/ports"
	"github.com/ersonp/bookspace/internal/infrastructure/config"
)

// InitHandler handles workspace initialization.
type InitHandler struct {
	schemas []ports.SchemaManager
}

// NewInitHandler creates a new init handler. The schema managers are
// prepared after the config is written.
func NewInitHandler(schemas ...ports.SchemaManager) *InitHandler {
	return &InitHandler{schemas: schemas}
}

// InitOptions configures the first profile.
type InitOptions struct {
	Profile string
	UserID  string
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath   string
	ProfilesPath string
	Profile      string
}

// Handle writes the default config and the first profile.
func (h *InitHandler) Handle(ctx context.Context, basePath string, opts InitOptions) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("bookspace already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	profile := opts.Profile
	if profile == "" {
		profile = config.DefaultProfile
	}

	profiles, err := config.LoadProfiles(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	profiles.Add(profile, config.ProfileEntry{UserID: opts.UserID})
	if err := profiles.Save(basePath); err != nil {
		return nil, fmt.Errorf("saving profiles: %w", err)
	}

	if err := EnsureSchemas(ctx, nil, h.schemas...); err != nil {
		return nil, err
	}

	return &InitResult{
		ConfigPath:   config.ConfigFilePath(basePath),
		ProfilesPath: config.ProfilesFilePath(basePath),
		Profile:      profile,
	}, nil
}

// EnsureSchemas prepares every non-nil schema manager in order and stops at
// the first failure.
func EnsureSchemas(ctx context.Context, logger *slog.Logger, managers ...ports.SchemaManager) error {
	if logger == nil {
		logger = slog.Default()
	}
	for i, m := range managers {
		if m == nil {
			continue
		}
		if err := m.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		logger.DebugContext(ctx, "schema ready", "store", i)
	}
	return nil
}
