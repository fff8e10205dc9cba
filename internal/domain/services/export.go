package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ersonp/bookspace/internal/domain/entities"
)

// exportTimeLayout matches ISO-8601 with millisecond precision.
const exportTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ExportDataset builds the backup document of ds stamped with now.
func ExportDataset(ds *entities.Dataset, now time.Time) entities.ExportDocument {
	src := ds.Clone()
	if src == nil {
		src = entities.NewDataset()
	}
	src.Normalize()

	return entities.ExportDocument{
		Transactions: src.Transactions,
		Clients:      src.Clients,
		Providers:    src.Providers,
		Employees:    src.Employees,
		Leads:        src.Leads,
		Invoices:     src.Invoices,
		Meetings:     src.Meetings,
		Config:       src.Config,
		ExportedAt:   now.UTC().Format(exportTimeLayout),
		Version:      entities.ExportFormatVersion,
	}
}

// MarshalExport encodes an export document as indented JSON.
func MarshalExport(doc entities.ExportDocument) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}
	return data, nil
}

// ExportFileName returns the default backup file name for the given day.
func ExportFileName(now time.Time) string {
	return "bookspace-backup-" + now.Format("2006-01-02") + ".json"
}

// ImportDataset decodes an export document (or a raw dataset blob) into a
// fresh dataset. Missing collections become empty. The payload must be a
// JSON object; anything else is rejected with a ValidationError.
func ImportDataset(data []byte) (*entities.Dataset, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, &entities.ValidationError{Message: "import file must contain a JSON object"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &entities.ValidationError{Message: "malformed JSON: " + err.Error()}
	}

	ds := entities.NewDataset()
	for _, name := range entities.CollectionNames {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			continue
		}
		var records []entities.Record
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, &entities.ValidationError{Field: name, Message: describeDecodeError(err, "a list of objects")}
		}
		if records == nil {
			records = []entities.Record{}
		}
		_ = ds.SetCollection(name, records)
	}

	if raw, ok := fields[fieldConfig]; ok && !isNull(raw) {
		var cfg map[string]any
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, &entities.ValidationError{Field: fieldConfig, Message: describeDecodeError(err, "an object")}
		}
		ds.Config = cfg
	}

	ds.Normalize()
	return ds, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func describeDecodeError(err error, want string) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("expected %s, found %s", want, typeErr.Value)
	}
	return err.Error()
}
