package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/web/templates"
)

// Paging bounds for attempt listings.
const (
	defaultAttemptLimit = 50
	maxAttemptLimit     = 500
)

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// callerAttempts returns the caller's attempts, newest first, capped by ?limit.
func (s *Server) callerAttempts(r *http.Request) ([]core.UploadAttempt, error) {
	owner := core.OwnerIDFromContext(r.Context())
	attempts, err := s.store.ListAttempts(r.Context(), owner)
	if err != nil {
		return nil, core.PersistenceFailure("failed to load upload history", err)
	}
	limit := min(parseIntParam(r, "limit", defaultAttemptLimit), maxAttemptLimit)
	if len(attempts) > limit {
		attempts = attempts[:limit]
	}
	if attempts == nil {
		attempts = []core.UploadAttempt{}
	}
	return attempts, nil
}

// handleListAttempts returns the caller's upload attempts.
func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.callerAttempts(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError, "")
		return
	}
	writeJSON(w, attempts)
}

// handleGetAttempt returns one attempt. Attempts owned by someone else are
// reported as not found.
func (s *Server) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uploadID")

	attempt, err := s.store.GetAttempt(r.Context(), id)
	if err == nil && attempt.OwnerID != core.OwnerIDFromContext(r.Context()) {
		err = core.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.respondError(w, r, errNotFound, http.StatusNotFound, "")
			return
		}
		s.respondError(w, r, core.PersistenceFailure("failed to load upload", err), http.StatusInternalServerError, "")
		return
	}
	writeJSON(w, attempt)
}

// handleUploadHistoryPage renders the caller's attempts as HTML.
func (s *Server) handleUploadHistoryPage(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.callerAttempts(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError, "")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.UploadHistory(core.OwnerIDFromContext(r.Context()), attempts).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError, "")
	}
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Uptime    string                   `json:"uptime"`
	Uploads   core.UploadLimiterStatus `json:"uploads"`
	Store     string                   `json:"store,omitempty"`
}

// handleHealth reports liveness, the upload limiter and, when the store can
// be pinged, its connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Uploads:   s.limiter.Status(),
	}
	status := http.StatusOK

	if p, ok := s.store.(Pinger); ok {
		resp.Store = "ok"
		if err := p.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Store = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSONStatus(w, status, resp)
}
