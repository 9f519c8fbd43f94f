package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvRow gives access to one data row by header name.
type csvRow struct {
	fields []string
	cols   map[string]int
}

func (r csvRow) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// readCSV reads a header-first CSV export. Header names are lowercased and
// trimmed; required lists columns that must be present. Rows that fail to
// parse are reported through the returned warnings and skipped.
func readCSV(data []byte, required ...string) ([]csvRow, []string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, col := range header {
		cols[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := cols[col]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var (
		rows     []csvRow
		warnings []string
	)
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: %v", line, err))
			continue
		}
		rows = append(rows, csvRow{fields: fields, cols: cols})
	}
	return rows, warnings, nil
}

// parseCSVRows runs the common row loop for the CSV exporters.
func parseCSVRows(rows []csvRow, warnings []string, fields func(csvRow) (name, link, password string, skip string)) *Result {
	result := newResult()
	result.Warnings = append(result.Warnings, warnings...)

	counter := 1
	for i, row := range rows {
		name, link, password, skip := fields(row)
		if skip != "" {
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: name, Reason: skip})
			continue
		}

		cred, warns, reason := build(name, link, password, &counter)
		for _, w := range warns {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d (%s): %s", i+2, name, w))
		}
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: name, Reason: reason})
			continue
		}
		result.Credentials = append(result.Credentials, cred)
	}
	return result
}
