package core

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/JonMunkholm/sweeper/internal/table"
)

// Service errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")
	ErrFileNotFound    = errors.New("file not found")
	ErrExportNotFound  = errors.New("export not found")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNoFiles         = errors.New("no files provided")
	ErrTooManyFiles    = errors.New("too many files in one upload")
)

// UploadedFile is one file as received from the caller.
type UploadedFile struct {
	Name string
	Data []byte
}

// FileInfo describes a working file without its contents.
type FileInfo struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Size       int64        `json:"size"`
	Format     table.Format `json:"format"`
	Rows       int          `json:"rows"`
	Columns    []string     `json:"columns"`
	Steps      []string     `json:"steps,omitempty"`
	UploadedAt time.Time    `json:"uploadedAt"`
}

// FileOutcome is the ingest result for one uploaded file. Exactly one of
// File and Err is set.
type FileOutcome struct {
	Name string    `json:"name"`
	File *FileInfo `json:"file,omitempty"`
	Err  error     `json:"-"`
}

// IngestReport lists outcomes in upload order.
type IngestReport struct {
	Files []FileOutcome `json:"files"`
}

// Accepted returns the number of files that parsed.
func (r IngestReport) Accepted() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the outcomes that carry an error.
func (r IngestReport) Failed() []FileOutcome {
	var out []FileOutcome
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// StepResult is returned by the transform operations.
type StepResult struct {
	File FileInfo `json:"file"`
	// RowsAffected counts removed rows for dedupe and filter.
	RowsAffected int `json:"rowsAffected"`
	// Columns lists filled columns for fill-missing and renamed ones for rename.
	Columns []string `json:"columns,omitempty"`
}

// Preview is the head of a working table with the inferred column kinds.
type Preview struct {
	File  FileInfo     `json:"file"`
	Kinds []table.Kind `json:"kinds"`
	Head  *table.Table `json:"head"`
}

// ExportRecord is one converted file kept for download and packaging.
type ExportRecord struct {
	ID        snowflake.ID `json:"id"`
	FileID    string       `json:"fileId"`
	Name      string       `json:"name"`
	Format    table.Format `json:"format"`
	MIMEType  string       `json:"mimeType"`
	Size      int          `json:"size"`
	Data      []byte       `json:"-"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Bundle is a packaged archive ready for download.
type Bundle struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Files    int    `json:"files"`
	Data     []byte `json:"-"`
}

// Status is a snapshot of service load.
type Status struct {
	Sessions    int           `json:"sessions"`
	MaxSessions int           `json:"maxSessions"`
	Limiter     LimiterStatus `json:"limiter"`
}
