package table

// numeric.go interprets text cells as numbers.
//
// Uploaded spreadsheets rarely contain clean numbers. The parser accepts:
//   - Currency symbols ($, €, £) and thousands separators
//   - Accounting negatives written as "(123.45)"
//   - Excel formula prefixes (="42")
//
// Cells that hold one of the common null spellings count as missing.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates a cleaned numeric string: integers, decimals and
// scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// missingValues are the cell spellings treated as "no value".
var missingValues = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
	"#n/a": true,
	"-nan": true,
	"<na>": true,
}

// IsMissing reports whether a cell holds no value.
func IsMissing(s string) bool {
	return missingValues[strings.ToLower(strings.TrimSpace(s))]
}

// ParseNumber converts a cell to a float. The boolean is false for missing
// and non-numeric cells.
func ParseNumber(s string) (float64, bool) {
	s = cleanCell(s)
	if IsMissing(s) {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatNumber renders a float with the fewest digits that round-trip.
// Whole numbers are written without a decimal point.
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// cleanCell removes the Excel formula wrapper from a cell value.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		return s[2 : len(s)-1]
	}
	return s
}

// numericColumn reports whether every non-missing value parses as a number
// and at least one value is present. It returns the parsed values alongside.
func numericColumn(values []string) ([]float64, bool) {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if IsMissing(v) {
			continue
		}
		f, ok := ParseNumber(v)
		if !ok {
			return nil, false
		}
		nums = append(nums, f)
	}
	return nums, len(nums) > 0
}
