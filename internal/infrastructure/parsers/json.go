package parsers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ersonp/bookspace/internal/domain/entities"
)

// JSONParser parses records from a JSON array of objects.
type JSONParser struct{}

// Parse reads JSON from the reader and returns parsed records.
func (p *JSONParser) Parse(r io.Reader) ([]entities.Record, error) {
	var raw []map[string]any

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	records := make([]entities.Record, 0, len(raw))
	for i, obj := range raw {
		if obj == nil {
			return nil, fmt.Errorf("item %d: not an object", i+1)
		}
		records = append(records, entities.Record(obj))
	}
	return records, nil
}

// ParseObject reads a single JSON object as a record.
func ParseObject(r io.Reader) (entities.Record, error) {
	var obj map[string]any
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("parsing JSON: not an object")
	}
	return entities.Record(obj), nil
}
