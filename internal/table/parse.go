package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Parse reads an uploaded file into a table, choosing the parser from the
// file name. Unsupported names fail with ErrUnsupportedFormat; malformed
// content fails with *ParseError.
func Parse(name string, data []byte) (*Table, error) {
	format, err := CheckFormat(name)
	if err != nil {
		return nil, err
	}
	return ParseAs(name, format, bytes.NewReader(data))
}

// ParseAs reads r using an already detected format.
func ParseAs(name string, format Format, r io.Reader) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch format {
	case FormatCSV:
		t, err = parseCSV(r)
	case FormatXLSX:
		t, err = parseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, &ParseError{File: name, Err: err}
	}
	return t, nil
}

func parseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(newTextReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}

	columns := normalizeHeader(header)
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if len(record) > len(columns) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("invalid csv: line %d has %d fields, header has %d", line, len(record), len(columns))
		}
		rows = append(rows, fitRow(record, len(columns)))
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

func parseXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("invalid spreadsheet: workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	// GetRows reports blank rows as empty slices.
	nonEmpty := records[:0]
	for _, rec := range records {
		if len(rec) > 0 {
			nonEmpty = append(nonEmpty, rec)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, ErrEmptyFile
	}

	width := 0
	for _, rec := range nonEmpty {
		width = max(width, len(rec))
	}

	columns := normalizeHeader(fitRow(nonEmpty[0], width))
	rows := make([][]string, 0, len(nonEmpty)-1)
	for _, rec := range nonEmpty[1:] {
		rows = append(rows, fitRow(rec, width))
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// normalizeHeader names blank header cells "Unnamed: <i>" and suffixes
// repeated names with ".1", ".2", ... so every column is addressable.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		candidate := name
		for n := 1; seen[candidate]; n++ {
			candidate = name + "." + strconv.Itoa(n)
		}
		seen[candidate] = true
		columns[i] = candidate
	}
	return columns
}
