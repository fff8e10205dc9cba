package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ersonp/bookspace/internal/domain/entities"
)

// CSVParser parses records from CSV. The header row names the fields;
// numeric cells become numbers and empty cells are left out.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed records.
func (p *CSVParser) Parse(r io.Reader) ([]entities.Record, error) {
	reader := csv.NewReader(r)

	header, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, header)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) ([]string, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	seen := make(map[string]bool, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if col == "" {
			return nil, fmt.Errorf("empty column name at position %d", i+1)
		}
		if seen[col] {
			return nil, fmt.Errorf("duplicate column: %s", col)
		}
		seen[col] = true
		header[i] = col
	}

	return header, nil
}

// readRecords reads all data rows and converts them to records.
func (p *CSVParser) readRecords(reader *csv.Reader, header []string) ([]entities.Record, error) {
	records := []entities.Record{}
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		record := make(entities.Record, len(header))
		for i, col := range header {
			if cell := strings.TrimSpace(row[i]); cell != "" {
				record[col] = cellValue(cell)
			}
		}
		records = append(records, record)
	}

	return records, nil
}

// cellValue converts plain numbers. Cells with a sign or a leading zero,
// such as phone numbers or zero-padded codes, stay strings.
func cellValue(cell string) any {
	if cell[0] == '+' || cell[0] == '-' || (len(cell) > 1 && cell[0] == '0' && cell[1] != '.') {
		return cell
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}
