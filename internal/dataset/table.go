package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// utf8BOM is written at the start of every tabular file so spreadsheet
// tools detect the encoding; reads strip it when present.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is an in-memory tabular file: one header row plus data rows.
// Rows are not required to be as wide as the header; missing cells
// read as empty.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable loads a CSV file into memory.
func ReadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse table %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("table %s has no header row", path)
	}

	return &Table{
		Header: records[0],
		Rows:   records[1:],
	}, nil
}

// Write stores the table as CSV with a UTF-8 byte-order marker.
func (t *Table) Write(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}

	if _, err := file.Write(utf8BOM); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write byte-order marker: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(t.Header); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to flush table: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close table file: %w", err)
	}
	return nil
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, header := range t.Header {
		if header == name {
			return i, true
		}
	}
	return 0, false
}

// Cell returns the value at the given row and column index, or the
// empty string when the row is shorter than the header.
func (t *Table) Cell(row []string, index int) string {
	if index >= len(row) {
		return ""
	}
	return row[index]
}

// Column collects every non-blank cell of the named column in row
// order. Blank cells are dropped, matching how missing values behave
// in the spreadsheet exports this tool consumes.
func (t *Table) Column(name string) ([]string, error) {
	index, ok := t.ColumnIndex(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found in table (header: %s)", name, strings.Join(t.Header, ", "))
	}

	var values []string
	for _, row := range t.Rows {
		cell := t.Cell(row, index)
		if cell == "" {
			continue
		}
		values = append(values, cell)
	}
	return values, nil
}

// FilterRows returns a new table keeping only rows whose cell in the
// named column equals value after trimming surrounding whitespace.
func (t *Table) FilterRows(column, value string) (*Table, error) {
	index, ok := t.ColumnIndex(column)
	if !ok {
		return nil, fmt.Errorf("filter column %q not found in table (header: %s)", column, strings.Join(t.Header, ", "))
	}

	filtered := &Table{Header: t.Header}
	for _, row := range t.Rows {
		if strings.TrimSpace(t.Cell(row, index)) == value {
			filtered.Rows = append(filtered.Rows, row)
		}
	}
	return filtered, nil
}
