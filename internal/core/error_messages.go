package core

// Error codes reference
//
// Codes are quoted by users to support staff. They are grouped by category:
//
//	FILE001 - File too large                 Patterns: "file too large", "request body too large"
//	FILE002 - Unsupported file type          Kind: unsupported_file_type
//	FILE003 - Unreadable file                Kind: decode
//	FILE004 - No file                        Patterns: "no file provided"
//	FILE005 - Empty file                     Patterns: "empty file"
//
//	VAL001 - Missing required columns        Kind: missing_columns
//	VAL002 - No valid rows                   Kind: empty_valid_input
//	VAL003 - Invalid field value             Kind: row_validation
//
//	DIST001 - No workers available           Kind: no_workers_available
//
//	DB001 - Could not save records           Kind: persistence
//	DB002 - Database unavailable             Patterns: "connection refused", "connection reset"
//	DB003 - Duplicate record                 Patterns: "duplicate key", "unique constraint"
//
//	UPL001 - Upload cancelled                Patterns: "upload cancelled", "context canceled"
//	UPL002 - System busy                     Patterns: "too many uploads"
//	UPL003 - Upload not found                Patterns: "upload not found"
//	UPL004 - Upload timed out                Patterns: "context deadline exceeded", "timeout"
//
//	ERR000 - Unknown error
//
// Typed ingestion errors are matched by kind first. Other errors are matched
// case-insensitively against the pattern table; the first match wins, so
// specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var kindMessages = map[ErrorKind]UserMessage{
	ErrUnsupportedFileType: {
		Message: "Unsupported file type",
		Action:  "Upload a CSV, XLS or XLSX file",
		Code:    "FILE002",
	},
	ErrDecode: {
		Message: "The file could not be read",
		Action:  "Check that the file is a valid CSV or Excel workbook",
		Code:    "FILE003",
	},
	ErrMissingColumns: {
		Message: "Required columns are missing from the file",
		Action:  "Add the missing columns to the header row",
		Code:    "VAL001",
	},
	ErrEmptyValidInput: {
		Message: "No valid rows were found in the file",
		Action:  "Make sure every row has values for all required columns",
		Code:    "VAL002",
	},
	ErrRowValidation: {
		Message: "The file contains an invalid value",
		Action:  "Fix the value on the reported line and upload again",
		Code:    "VAL003",
	},
	ErrNoWorkersAvailable: {
		Message: "No agents are available to receive tasks",
		Action:  "Add at least one agent before uploading a list",
		Code:    "DIST001",
	},
	ErrPersistence: {
		Message: "The records could not be saved",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg:     UserMessage{Message: "File exceeds the maximum upload size", Action: "Split the file into smaller files", Code: "FILE001"},
	},
	{
		pattern: "request body too large",
		msg:     UserMessage{Message: "File exceeds the maximum upload size", Action: "Split the file into smaller files", Code: "FILE001"},
	},
	{
		pattern: "no file provided",
		msg:     UserMessage{Message: "No file was selected", Action: "Please select a file to upload", Code: "FILE004"},
	},
	{
		pattern: "empty file",
		msg:     UserMessage{Message: "The uploaded file is empty", Action: "Upload a file with a header row and data rows", Code: "FILE005"},
	},
	{
		pattern: "invalid multipart form",
		msg:     UserMessage{Message: "The upload request was malformed", Action: "Send the file as multipart/form-data", Code: "FILE006"},
	},
	{
		pattern: "duplicate key",
		msg:     UserMessage{Message: "A record with this ID already exists", Action: "Please try again", Code: "DB003"},
	},
	{
		pattern: "unique constraint",
		msg:     UserMessage{Message: "A record with this ID already exists", Action: "Please try again", Code: "DB003"},
	},
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "DB002"},
	},
	{
		pattern: "connection reset",
		msg:     UserMessage{Message: "Database connection was interrupted", Action: "Please try again", Code: "DB002"},
	},
	{
		pattern: "upload cancelled",
		msg:     UserMessage{Message: "Upload was cancelled", Action: "Start a new upload when ready", Code: "UPL001"},
	},
	{
		pattern: "context canceled",
		msg:     UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "UPL001"},
	},
	{
		pattern: "too many uploads",
		msg:     UserMessage{Message: "System is busy processing other uploads", Action: "Please wait a moment and try again", Code: "UPL002"},
	},
	{
		pattern: "upload not found",
		msg:     UserMessage{Message: "Upload not found", Action: "Check the upload ID", Code: "UPL003"},
	},
	{
		pattern: "context deadline exceeded",
		msg:     UserMessage{Message: "Upload timed out", Action: "Try uploading a smaller file", Code: "UPL004"},
	},
	{
		pattern: "timeout",
		msg:     UserMessage{Message: "Upload timed out", Action: "Try uploading a smaller file", Code: "UPL004"},
	},
}

// defaultMessage is returned when nothing matches. Support staff should check
// the server log for the technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	// Cancellation surfaces through persistence errors too; report it as such.
	if kind := KindOf(err); kind != "" && (kind != ErrPersistence || !strings.Contains(errStr, "context")) {
		if msg, ok := kindMessages[kind]; ok {
			return msg
		}
	}

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
