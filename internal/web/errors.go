package web

// errors.go provides unified response handling for the web layer.
//
// Every error is logged server-side with the technical detail and request id,
// then mapped via core.MapError to a user-facing message with an action and a
// support code. API clients get the JSON envelope; browsers get an HTML page.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/logging"
	"github.com/JonMunkholm/listingest/internal/web/templates"
)

// Errors raised by the HTTP layer before the engine sees the file. Their text
// is matched by core.MapError.
var (
	errFileTooLarge = errors.New("file too large")
	errNoFile       = errors.New("no file provided")
	errEmptyFile    = errors.New("empty file")
	errBadForm      = errors.New("invalid multipart form")
	errNotFound     = errors.New("upload not found")
)

// SuccessResponse is the envelope for successful API calls.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// UploadData summarises an ingestion for API clients.
type UploadData struct {
	RecordsProcessed        int    `json:"recordsProcessed"`
	GroupsOrWorkersAssigned int    `json:"groupsOrWorkersAssigned,omitempty"`
	ListsCreated            int    `json:"listsCreated,omitempty"`
	RowsDropped             int    `json:"rowsDropped"`
	UploadID                string `json:"uploadId"`
}

// ErrorResponse is the envelope for failed API calls.
// Details carries both machine-readable (Kind, Code) and human-readable
// (Action) fields.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Details ErrorDetails `json:"details"`
}

// ErrorDetails describes a failure.
type ErrorDetails struct {
	Kind     core.ErrorKind `json:"kind,omitempty"`
	Code     string         `json:"code"`
	Action   string         `json:"action,omitempty"`
	Missing  []string       `json:"missing,omitempty"`
	Line     int            `json:"line,omitempty"`
	UploadID string         `json:"uploadId,omitempty"`
}

// statusFor picks the HTTP status for an ingestion error: bad input is the
// client's fault, storage failures are ours, a saturated limiter is
// temporary.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errNotFound), errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	}
	switch core.KindOf(err) {
	case "":
		return http.StatusInternalServerError
	case core.ErrPersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// respondError logs the technical error and writes the user-facing one.
// uploadID is echoed to the client when an attempt was recorded.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int, uploadID string) {
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"upload_id", uploadID,
	)

	if !wantsJSON(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusCode)
		_ = templates.ErrorPage(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w)
		return
	}

	details := ErrorDetails{
		Kind:     core.KindOf(err),
		Code:     userMsg.Code,
		Action:   userMsg.Action,
		UploadID: uploadID,
	}
	message := userMsg.Message
	var ie *core.IngestError
	if errors.As(err, &ie) {
		details.Missing = ie.Missing
		details.Line = ie.Line
		// Typed errors carry a precise, safe message; prefer it.
		message = ie.Error()
	}

	writeJSONStatus(w, statusCode, ErrorResponse{
		Success: false,
		Message: message,
		Details: details,
	})
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// writeJSON encodes v as JSON with a 200 status.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
