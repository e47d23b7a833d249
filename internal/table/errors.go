package table

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned for file names whose suffix is neither
// .csv nor .xlsx, and for unknown export targets.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrEmptyFile is wrapped in a ParseError when the input has no header row.
var ErrEmptyFile = errors.New("empty file")

// ParseError reports a file whose content could not be read as a table.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FilterError reports an expression that failed to compile against a table.
type FilterError struct {
	Expression string
	Err        error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter expression %q: %v", e.Expression, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

// RenameError reports a rename that would leave two columns with one name.
type RenameError struct {
	Target  string
	Sources []string
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("rename collision: columns %q would all be named %q", e.Sources, e.Target)
}

// SerializationError reports a table the spreadsheet writer rejected.
type SerializationError struct {
	Format Format
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
