package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/domain/services"
	"github.com/ersonp/bookspace/internal/infrastructure/parsers"
)

// statusField holds the status of leads and invoices.
const statusField = "estado"

// ErrRecordNotFound is returned when no record has the requested id.
var ErrRecordNotFound = errors.New("record not found")

// RecordsHandler handles record mutations of the local dataset.
type RecordsHandler struct {
	workspace *Workspace
	activity  *services.ActivityService
	now       func() time.Time
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(workspace *Workspace, activity *services.ActivityService) *RecordsHandler {
	return &RecordsHandler{
		workspace: workspace,
		activity:  activity,
		now:       time.Now,
	}
}

// PutResult contains the result of storing a record.
type PutResult struct {
	Record   entities.Record
	Created  bool
	Activity entities.ActivityType
}

// List returns the records of a collection.
func (h *RecordsHandler) List(ctx context.Context, collection string) ([]entities.Record, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	var out []entities.Record
	h.workspace.View(ctx, func(ds *entities.Dataset) {
		records, _ := ds.Collection(collection)
		out = make([]entities.Record, len(records))
		for i, r := range records {
			out[i] = r.Clone()
		}
	})
	return out, nil
}

// Put creates or replaces a record. A record without an id gets a new one;
// updatedAt is always refreshed.
func (h *RecordsHandler) Put(ctx context.Context, collection string, rec entities.Record) (*PutResult, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	rec = h.stamp(rec)
	var (
		created bool
		old     entities.Record
	)
	err := h.workspace.Update(ctx, func(ds *entities.Dataset) error {
		records, _ := ds.Collection(collection)
		records, old, created = upsert(records, rec)
		return ds.SetCollection(collection, records)
	})
	if err != nil {
		return nil, err
	}

	typ, err := h.logPut(ctx, collection, rec, old, created)
	if err != nil {
		return nil, err
	}
	return &PutResult{Record: rec, Created: created, Activity: typ}, nil
}

// Delete removes a record by id.
func (h *RecordsHandler) Delete(ctx context.Context, collection, id string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}

	var removed entities.Record
	err := h.workspace.Update(ctx, func(ds *entities.Dataset) error {
		records, _ := ds.Collection(collection)
		idx := indexOf(records, id)
		if idx < 0 {
			return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, collection, id)
		}
		removed = records[idx]
		kept := make([]entities.Record, 0, len(records)-1)
		kept = append(kept, records[:idx]...)
		kept = append(kept, records[idx+1:]...)
		return ds.SetCollection(collection, kept)
	})
	if err != nil {
		return err
	}

	_, err = h.activity.LogRecord(ctx, collection, services.ActionDelete, removed)
	return err
}

// ImportOptions controls bulk record import.
type ImportOptions struct {
	Format string // "json", "csv", or "auto"
}

// ImportResult contains the result of a bulk record import.
type ImportResult struct {
	Created int
	Updated int
}

// Import reads records from a file and stores each of them like Put.
func (h *RecordsHandler) Import(ctx context.Context, collection, filePath string, opts ImportOptions) (*ImportResult, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	var parser parsers.Parser
	if opts.Format == "" || opts.Format == "auto" {
		parser = parsers.ForFile(filePath)
	} else {
		parser = parsers.ForFormat(opts.Format)
	}
	if parser == nil {
		return nil, fmt.Errorf("unsupported format for file: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	parsed, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	result := &ImportResult{}
	for _, rec := range parsed {
		put, err := h.Put(ctx, collection, rec)
		if err != nil {
			return result, err
		}
		if put.Created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

func (h *RecordsHandler) stamp(rec entities.Record) entities.Record {
	out := rec.Clone()
	if out == nil {
		out = entities.Record{}
	}
	if out.ID() == "" {
		out[entities.FieldID] = uuid.NewString()
	}
	out[entities.FieldUpdatedAt] = h.now().UTC().Format(time.RFC3339Nano)
	return out
}

func (h *RecordsHandler) logPut(ctx context.Context, collection string, rec, old entities.Record, created bool) (entities.ActivityType, error) {
	var (
		entry entities.ActivityEntry
		err   error
	)
	switch {
	case created:
		entry, err = h.activity.LogRecord(ctx, collection, services.ActionCreate, rec)
	case statusChanged(collection, old, rec):
		oldStatus, _ := old[statusField].(string)
		entry, err = h.activity.LogStatusChange(ctx, collection, rec, oldStatus)
	default:
		entry, err = h.activity.LogRecord(ctx, collection, services.ActionUpdate, rec)
	}
	return entry.Type, err
}

func statusChanged(collection string, old, rec entities.Record) bool {
	if collection != entities.CollectionLeads && collection != entities.CollectionInvoices {
		return false
	}
	return fmt.Sprint(old[statusField]) != fmt.Sprint(rec[statusField])
}

func validateCollection(collection string) error {
	if !entities.IsValidCollection(collection) {
		return &entities.ValidationError{
			Field:   "collection",
			Message: fmt.Sprintf("unknown collection %q", collection),
		}
	}
	return nil
}

// upsert replaces the record with rec's id or appends rec.
func upsert(records []entities.Record, rec entities.Record) ([]entities.Record, entities.Record, bool) {
	idx := indexOf(records, rec.ID())
	if idx < 0 {
		return append(records, rec), nil, true
	}
	old := records[idx]
	records[idx] = rec
	return records, old, false
}

func indexOf(records []entities.Record, id string) int {
	for i, r := range records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
