package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/ports"
	"github.com/ersonp/bookspace/internal/domain/services"
)

// StdoutPath selects the writer passed to ExportHandler.Handle.
const StdoutPath = "-"

// ErrNoBackupTarget is returned when an upload is requested without a
// configured backup target.
var ErrNoBackupTarget = errors.New("no backup target configured (set backup.s3.bucket)")

// ExportHandler writes the dataset as a backup document.
type ExportHandler struct {
	workspace *Workspace
	sync      *services.SyncService
	activity  *services.ActivityService
	backup    ports.BackupTarget
	now       func() time.Time
}

// NewExportHandler creates a new export handler. backup may be nil.
func NewExportHandler(workspace *Workspace, syncService *services.SyncService, activity *services.ActivityService, backup ports.BackupTarget) *ExportHandler {
	return &ExportHandler{
		workspace: workspace,
		sync:      syncService,
		activity:  activity,
		backup:    backup,
		now:       time.Now,
	}
}

// ExportOptions controls where the export goes.
type ExportOptions struct {
	// Path of the output file. Empty uses the dated default file name;
	// StdoutPath writes to the given writer.
	Path string
	// Upload also stores the document on the backup target.
	Upload bool
}

// ExportResult contains the result of an export.
type ExportResult struct {
	FileName string
	Path     string
	Location string
	Records  int
	Bytes    int
}

// Handle exports the local dataset.
func (h *ExportHandler) Handle(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	if opts.Upload && h.backup == nil {
		return nil, ErrNoBackupTarget
	}

	ds := h.workspace.Snapshot(ctx)
	data, err := services.MarshalExport(h.sync.Export(ds))
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}

	result := &ExportResult{
		FileName: services.ExportFileName(h.now()),
		Records:  ds.Len(),
		Bytes:    len(data),
	}

	switch opts.Path {
	case StdoutPath:
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("writing export: %w", err)
		}
	default:
		result.Path = opts.Path
		if result.Path == "" {
			result.Path = result.FileName
		}
		if err := os.WriteFile(result.Path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing export: %w", err)
		}
	}

	if opts.Upload {
		loc, err := h.backup.Upload(ctx, result.FileName, data)
		if err != nil {
			return nil, fmt.Errorf("uploading export: %w", err)
		}
		result.Location = loc
	}

	if _, err := h.activity.LogSystem(ctx, entities.ActivityDataExport, ""); err != nil {
		return nil, err
	}
	return result, nil
}
