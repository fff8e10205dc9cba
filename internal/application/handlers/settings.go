package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/services"
)

// SettingsHandler reads and changes the dataset's free-form config.
type SettingsHandler struct {
	workspace *Workspace
	activity  *services.ActivityService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(workspace *Workspace, activity *services.ActivityService) *SettingsHandler {
	return &SettingsHandler{
		workspace: workspace,
		activity:  activity,
	}
}

// Get returns a copy of the config.
func (h *SettingsHandler) Get(ctx context.Context) map[string]any {
	out := map[string]any{}
	h.workspace.View(ctx, func(ds *entities.Dataset) {
		for k, v := range ds.Config {
			out[k] = v
		}
	})
	return out
}

// Set stores value under key. Values that parse as JSON are stored decoded,
// anything else as a plain string.
func (h *SettingsHandler) Set(ctx context.Context, key, value string) (map[string]any, error) {
	if key == "" {
		return nil, &entities.ValidationError{Field: "key", Message: "must not be empty"}
	}

	var config map[string]any
	err := h.workspace.Update(ctx, func(ds *entities.Dataset) error {
		ds.Config[key] = settingValue(value)
		config = ds.Config
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.activity.LogConfig(ctx, config)
	return h.Get(ctx), nil
}

// Unset removes key from the config.
func (h *SettingsHandler) Unset(ctx context.Context, key string) error {
	var config map[string]any
	err := h.workspace.Update(ctx, func(ds *entities.Dataset) error {
		if _, ok := ds.Config[key]; !ok {
			return errors.New("no such setting: " + key)
		}
		delete(ds.Config, key)
		config = ds.Config
		return nil
	})
	if err != nil {
		return err
	}

	h.activity.LogConfig(ctx, config)
	return nil
}

func settingValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
