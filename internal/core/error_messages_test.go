package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"missing columns", MissingColumnsError([]string{"phone"}), "VAL001"},
		{"empty valid input", EmptyValidInputError(3), "VAL002"},
		{"rejected row", RowValidationFailure{Line: 2, Field: "email", Reason: "bad"}.asFileError(), "VAL003"},
		{"unsupported type", UnsupportedFileTypeError("a.pdf", "application/pdf"), "FILE002"},
		{"decode", DecodeError(3, "invalid csv", errors.New("bare quote")), "FILE003"},
		{"wrapped kind", fmt.Errorf("ingest: %w", NoWorkersAvailableError()), "DIST001"},
		{"persistence", PersistenceFailure("failed to save contacts", errors.New("disk full")), "DB001"},
		{"persistence timeout", PersistenceFailure("failed to save contacts", context.DeadlineExceeded), "UPL004"},
		{"limiter", ErrTooManyUploads, "UPL002"},
		{"body too large", errors.New("http: request body too large"), "FILE001"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB002"},
		{"case insensitive", errors.New("DUPLICATE KEY value"), "DB003"},
		{"unknown", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(NoWorkersAvailableError())

	expected := "No agents are available to receive tasks (Code: DIST001). Add at least one agent before uploading a list"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil error should not be user facing")
	}
	if !IsUserFacing(MissingColumnsError([]string{"name"})) {
		t.Error("missing columns should be user facing")
	}
	if IsUserFacing(errors.New("random internal error xyz")) {
		t.Error("unknown error should not be user facing")
	}
}
