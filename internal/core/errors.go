package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the machine-readable category of an ingestion failure.
type ErrorKind string

const (
	ErrUnsupportedFileType ErrorKind = "unsupported_file_type"
	ErrMissingColumns      ErrorKind = "missing_columns"
	ErrEmptyValidInput     ErrorKind = "empty_valid_input"
	ErrNoWorkersAvailable  ErrorKind = "no_workers_available"
	ErrRowValidation       ErrorKind = "row_validation"
	ErrDecode              ErrorKind = "decode"
	ErrPersistence         ErrorKind = "persistence"
)

// ErrAttemptConflict is returned by AttemptStore when a conditional status
// update finds the attempt in a different state than expected.
var ErrAttemptConflict = errors.New("upload attempt status conflict")

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// IngestError is a fatal (or, for ErrRowValidation, row-level) failure.
type IngestError struct {
	Kind    ErrorKind
	Message string
	Missing []string // populated for ErrMissingColumns
	Line    int      // source line, 0 if not applicable
	Err     error
}

func (e *IngestError) Error() string {
	msg := e.Message
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or "" if err is not an IngestError.
func KindOf(err error) ErrorKind {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// UnsupportedFileTypeError rejects a file before decoding.
func UnsupportedFileTypeError(fileName, contentType string) error {
	return &IngestError{
		Kind:    ErrUnsupportedFileType,
		Message: fmt.Sprintf("unsupported file type %q (%s): only CSV, XLS and XLSX files are allowed", fileName, contentType),
	}
}

// MissingColumnsError rejects a whole file whose header lacks required columns.
func MissingColumnsError(missing []string) error {
	return &IngestError{
		Kind:    ErrMissingColumns,
		Message: "missing required columns: " + strings.Join(missing, ", "),
		Missing: missing,
	}
}

// EmptyValidInputError is returned when no row survives validation.
func EmptyValidInputError(dropped int) error {
	return &IngestError{
		Kind:    ErrEmptyValidInput,
		Message: fmt.Sprintf("no valid records found (%d rows dropped)", dropped),
	}
}

// NoWorkersAvailableError is returned when the pool snapshot is empty.
func NoWorkersAvailableError() error {
	return &IngestError{
		Kind:    ErrNoWorkersAvailable,
		Message: "no workers available to distribute tasks",
	}
}

// DecodeError reports a malformed byte stream or structure.
func DecodeError(line int, msg string, err error) error {
	return &IngestError{Kind: ErrDecode, Message: msg, Line: line, Err: err}
}

// PersistenceFailure wraps a storage error.
func PersistenceFailure(msg string, err error) error {
	return &IngestError{Kind: ErrPersistence, Message: msg, Err: err}
}

// RowValidationFailure describes why a single row was rejected.
type RowValidationFailure struct {
	Line   int
	Field  string
	Value  string
	Reason string
}

func (f RowValidationFailure) Error() string {
	if f.Field != "" {
		return fmt.Sprintf("line %d: %s: %s", f.Line, f.Field, f.Reason)
	}
	return fmt.Sprintf("line %d: %s", f.Line, f.Reason)
}

// asFileError promotes a row failure to a fatal error for the PolicyRejectFile policy.
func (f RowValidationFailure) asFileError() error {
	return &IngestError{
		Kind:    ErrRowValidation,
		Message: fmt.Sprintf("invalid %s %q", f.Field, f.Value),
		Line:    f.Line,
		Err:     errors.New(f.Reason),
	}
}
