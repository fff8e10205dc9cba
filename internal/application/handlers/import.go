package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/services"
)

// DatasetImportHandler replaces the local dataset with a backup document.
type DatasetImportHandler struct {
	workspace *Workspace
	sync      *services.SyncService
	activity  *services.ActivityService
}

// NewDatasetImportHandler creates a new dataset import handler.
func NewDatasetImportHandler(workspace *Workspace, syncService *services.SyncService, activity *services.ActivityService) *DatasetImportHandler {
	return &DatasetImportHandler{
		workspace: workspace,
		sync:      syncService,
		activity:  activity,
	}
}

// DatasetImportResult contains the result of a dataset import.
type DatasetImportResult struct {
	Records int
	// Duplicates lists, per collection, ids that occur more than once.
	Duplicates map[string][]string
}

// Handle validates the document read from r and, when it is valid, replaces
// the local dataset with it. Nothing is merged.
func (h *DatasetImportHandler) Handle(ctx context.Context, r io.Reader) (*DatasetImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}

	ds, err := h.sync.Import(data)
	if err != nil {
		return nil, err
	}

	if err := h.workspace.Replace(ctx, ds); err != nil {
		return nil, fmt.Errorf("saving imported dataset: %w", err)
	}
	if _, err := h.activity.LogSystem(ctx, entities.ActivityDataImport, ""); err != nil {
		return nil, err
	}

	return &DatasetImportResult{
		Records:    ds.Len(),
		Duplicates: ds.DuplicateIDs(),
	}, nil
}
