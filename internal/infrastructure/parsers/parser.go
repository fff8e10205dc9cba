// Package parsers reads collection records from external files.
package parsers

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/ersonp/bookspace/internal/domain/entities"
)

// Parser reads records from a stream.
type Parser interface {
	Parse(r io.Reader) ([]entities.Record, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}
