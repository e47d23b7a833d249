package core

// error_messages.go turns technical errors into messages a user can act on.
//
// # Error Codes Reference
//
// Each message carries a code that users can quote to support staff.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: the upload exceeds the configured size limit
//	FILE002 - Invalid CSV: rows do not line up with the header or quoting is broken
//	FILE003 - Invalid spreadsheet: the .xlsx file could not be opened
//	FILE004 - No file: the request carried no files
//	FILE005 - Empty file: the file has no header row
//	FILE006 - Unsupported format: only .csv and .xlsx are accepted
//	FILE007 - Unreadable file: any other parse failure
//	FILE008 - Too many files: more files than one upload accepts
//
// # Transform Errors (XFM001-XFM099)
//
//	XFM001 - Invalid filter: the expression is malformed or names an unknown column
//	XFM002 - Rename collision: two columns would end up with the same name
//	XFM003 - File not found: the file was removed or never uploaded
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Spreadsheet limits: the table cannot be written as .xlsx
//	EXP002 - Nothing to package: no file has been converted yet
//	EXP003 - Export not found: the converted file is no longer available
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found: it expired or was closed
//	SES002 - Too many sessions: the server is at capacity
//
// # Request Errors (UPL002, UPL004-UPL005, RATE001)
//
//	UPL002 - System busy: every work slot is taken
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//	RATE001 - Rate limited
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application logs for the
// original technical error.
//
// # Matching
//
// Typed and sentinel errors are matched first with errors.Is / errors.As,
// then message patterns case-insensitively with strings.Contains. The first
// match wins, so specific entries come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sweeper/internal/archive"
	"github.com/JonMunkholm/sweeper/internal/table"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorRule maps errors satisfying match to a user message.
type errorRule struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func as[T error]() func(error) bool {
	return func(err error) bool {
		var target T
		return errors.As(err, &target)
	}
}

func contains(pattern string) func(error) bool {
	return func(err error) bool {
		return strings.Contains(strings.ToLower(err.Error()), pattern)
	}
}

var errorRules = []errorRule{
	// =========================================================================
	// File Errors (FILE001-FILE008)
	// =========================================================================
	{
		match: is(ErrFileTooLarge),
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE001",
		},
	},
	{
		match: contains("file too large"),
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE001",
		},
	},
	{
		match: is(table.ErrEmptyFile),
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file with a header row",
			Code:    "FILE005",
		},
	},
	{
		match: contains("invalid csv"),
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure every row has no more fields than the header and quotes are balanced",
			Code:    "FILE002",
		},
	},
	{
		match: contains("invalid spreadsheet"),
		msg: UserMessage{
			Message: "The spreadsheet could not be opened",
			Action:  "Re-save the workbook as .xlsx and upload it again",
			Code:    "FILE003",
		},
	},
	{
		match: is(ErrNoFiles),
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Select one or more .csv or .xlsx files to upload",
			Code:    "FILE004",
		},
	},
	{
		match: is(ErrTooManyFiles),
		msg: UserMessage{
			Message: "Too many files in one upload",
			Action:  "Upload the files in smaller batches",
			Code:    "FILE008",
		},
	},
	{
		match: is(table.ErrUnsupportedFormat),
		msg: UserMessage{
			Message: "Unsupported file type",
			Action:  "Upload .csv or .xlsx files",
			Code:    "FILE006",
		},
	},
	{
		match: as[*table.ParseError](),
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Check that the file is a well-formed CSV or spreadsheet",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Transform Errors (XFM001-XFM003)
	// =========================================================================
	{
		match: as[*table.FilterError](),
		msg: UserMessage{
			Message: "The filter expression is not valid",
			Action:  "Use comparisons like age > 30 joined with and, or, not",
			Code:    "XFM001",
		},
	},
	{
		match: as[*table.RenameError](),
		msg: UserMessage{
			Message: "Two columns would end up with the same name",
			Action:  "Choose a new name that no other column uses",
			Code:    "XFM002",
		},
	},
	{
		match: is(ErrFileNotFound),
		msg: UserMessage{
			Message: "File not found",
			Action:  "Upload the file again",
			Code:    "XFM003",
		},
	},

	// =========================================================================
	// Export Errors (EXP001-EXP003)
	// =========================================================================
	{
		match: as[*table.SerializationError](),
		msg: UserMessage{
			Message: "The table exceeds spreadsheet limits",
			Action:  "Export as CSV instead",
			Code:    "EXP001",
		},
	},
	{
		match: is(archive.ErrEmptyPackage),
		msg: UserMessage{
			Message: "There are no processed files to package yet",
			Action:  "Convert at least one file first",
			Code:    "EXP002",
		},
	},
	{
		match: is(ErrExportNotFound),
		msg: UserMessage{
			Message: "Converted file not found",
			Action:  "Convert the file again",
			Code:    "EXP003",
		},
	},

	// =========================================================================
	// Session Errors (SES001-SES002)
	// =========================================================================
	{
		match: is(ErrSessionNotFound),
		msg: UserMessage{
			Message: "Your session has expired",
			Action:  "Reload the page to start a new session",
			Code:    "SES001",
		},
	},
	{
		match: is(ErrTooManySessions),
		msg: UserMessage{
			Message: "The server is handling too many sessions",
			Action:  "Please try again in a few minutes",
			Code:    "SES002",
		},
	},

	// =========================================================================
	// Request Errors (UPL002, UPL004-UPL005, RATE001)
	// =========================================================================
	{
		match: is(ErrBusy),
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		match: is(context.Canceled),
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		match: is(context.DeadlineExceeded),
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "UPL005",
		},
	},
	{
		match: contains("rate limit"),
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no rule matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching rule, or a generic ERR000 message.
//
// Example:
//
//	_, err := svc.Filter(ctx, sid, fid, "age >")
//	msg := MapError(err)
//	// msg.Code == "XFM001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, rule := range errorRules {
		if rule.match(err) {
			return rule.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a specific rule rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown for it.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
