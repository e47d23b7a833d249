package table

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a supported file encoding.
type Format string

const (
	FormatUnsupported Format = ""
	FormatCSV         Format = "csv"
	FormatXLSX        Format = "xlsx"
)

// MIME types for exported buffers.
const (
	MIMECSV  = "text/csv"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DetectFormat maps a file name to a format by case-insensitive suffix.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatUnsupported
	}
}

// CheckFormat is DetectFormat returning ErrUnsupportedFormat for unknown suffixes.
func CheckFormat(name string) (Format, error) {
	f := DetectFormat(name)
	if f == FormatUnsupported {
		ext := filepath.Ext(name)
		if ext == "" {
			ext = "(none)"
		}
		return f, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// ParseFormat coerces a user-supplied export target into a known format.
// Accepts the aliases offered by the UI ("CSV", "Excel", "spreadsheet").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", ".csv", "text/csv":
		return FormatCSV, nil
	case "xlsx", ".xlsx", "excel", "spreadsheet", MIMEXLSX:
		return FormatXLSX, nil
	default:
		return FormatUnsupported, fmt.Errorf("%w: target %q", ErrUnsupportedFormat, s)
	}
}

// Extension returns the canonical extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatXLSX:
		return ".xlsx"
	default:
		return ""
	}
}

// MIMEType returns the content type for exported data in this format.
func (f Format) MIMEType() string {
	switch f {
	case FormatCSV:
		return MIMECSV
	case FormatXLSX:
		return MIMEXLSX
	default:
		return "application/octet-stream"
	}
}

// String implements fmt.Stringer.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "CSV"
	case FormatXLSX:
		return "Spreadsheet"
	default:
		return "Unsupported"
	}
}

// OutputName replaces the extension of name's base with the target's
// canonical extension. Names without an extension get one appended, and a
// base with nothing before its extension is named "file".
func OutputName(name string, target Format) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.Trim(stem, "./") == "" {
		stem = "file"
	}
	return stem + target.Extension()
}
