package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by spreadsheet export.
const SheetName = "Sheet1"

// Export serializes t in the target format and returns the bytes and the
// MIME type to serve them with. CSV export never fails for a well-formed
// table; the spreadsheet writer may reject content with *SerializationError.
func Export(t *Table, target Format) ([]byte, string, error) {
	switch target {
	case FormatCSV:
		data, err := writeCSV(t)
		if err != nil {
			return nil, "", &SerializationError{Format: target, Err: err}
		}
		return data, MIMECSV, nil
	case FormatXLSX:
		data, err := writeXLSX(t)
		if err != nil {
			return nil, "", &SerializationError{Format: target, Err: err}
		}
		return data, MIMEXLSX, nil
	default:
		return nil, "", fmt.Errorf("%w: target %q", ErrUnsupportedFormat, string(target))
	}
}

func writeCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	write := func(record []string) error {
		// A lone empty field would come out as a blank line, which readers skip.
		if len(record) == 1 && record[0] == "" {
			w.Flush()
			if err := w.Error(); err != nil {
				return err
			}
			_, err := buf.WriteString("\"\"\n")
			return err
		}
		return w.Write(record)
	}

	if err := write(t.Columns); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		if err := write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXLSX(t *Table) ([]byte, error) {
	if len(t.Columns) > excelize.MaxColumns {
		return nil, fmt.Errorf("%d columns exceeds the spreadsheet limit of %d", len(t.Columns), excelize.MaxColumns)
	}
	if len(t.Rows)+1 > excelize.TotalRows {
		return nil, fmt.Errorf("%d rows exceeds the spreadsheet limit of %d", len(t.Rows)+1, excelize.TotalRows)
	}

	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return nil, err
	}

	if err := writeSheetRow(sw, 1, t.Columns); err != nil {
		return nil, err
	}
	for i, row := range t.Rows {
		if err := writeSheetRow(sw, i+2, row); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheetRow(sw *excelize.StreamWriter, rowNum int, cells []string) error {
	values := make([]interface{}, len(cells))
	for i, cell := range cells {
		if utf8.RuneCountInString(cell) > excelize.TotalCellChars {
			return fmt.Errorf("row %d column %d: cell text exceeds %d characters", rowNum, i+1, excelize.TotalCellChars)
		}
		values[i] = cell
	}

	axis, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return sw.SetRow(axis, values)
}
