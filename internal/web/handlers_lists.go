package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/listingest/internal/core"
	"github.com/JonMunkholm/listingest/internal/logging"
)

// maxAgentNameLen bounds worker names accepted over HTTP.
const maxAgentNameLen = 200

// handleGetLists returns every persisted list.
func (s *Server) handleGetLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.store.ListLists(r.Context())
	if err != nil {
		s.respondError(w, r, core.PersistenceFailure("failed to load lists", err), http.StatusInternalServerError, "")
		return
	}
	if lists == nil {
		lists = []core.PersistedList{}
	}
	writeJSON(w, lists)
}

// handleGetListsByAgent returns the lists assigned to one worker, or 404
// when the worker has none.
func (s *Server) handleGetListsByAgent(w http.ResponseWriter, r *http.Request) {
	agentID := core.WorkerID(chi.URLParam(r, "agentID"))

	lists, err := s.store.ListListsByWorker(r.Context(), agentID)
	if err != nil {
		s.respondError(w, r, core.PersistenceFailure("failed to load lists", err), http.StatusInternalServerError, "")
		return
	}
	if len(lists) == 0 {
		writeJSONStatus(w, http.StatusNotFound, ErrorResponse{
			Success: false,
			Message: "No lists found for this agent",
			Details: ErrorDetails{Code: "LIST001", Action: "Check the agent ID"},
		})
		return
	}
	writeJSON(w, lists)
}

// handleListAgents returns the worker pool in pool order.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	workers, err := s.store.ListWorkers(r.Context())
	if err != nil {
		s.respondError(w, r, core.PersistenceFailure("failed to read worker pool", err), http.StatusInternalServerError, "")
		return
	}
	if workers == nil {
		workers = []core.Worker{}
	}
	writeJSON(w, workers)
}

type createAgentRequest struct {
	Name string `json:"name"`
}

// handleCreateAgent registers a worker when the store supports it.
func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	adder, ok := s.store.(WorkerAdder)
	if !ok {
		writeJSONStatus(w, http.StatusNotImplemented, ErrorResponse{
			Success: false,
			Message: "This store does not support adding agents",
			Details: ErrorDetails{Code: "AGENT002"},
		})
		return
	}

	var body createAgentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "Invalid request body",
			Details: ErrorDetails{Code: "AGENT001", Action: `Send {"name": "..."}`},
		})
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > maxAgentNameLen {
		writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{
			Success: false,
			Message: "Agent name is required",
			Details: ErrorDetails{Code: "AGENT001", Action: "Provide a name of at most 200 characters"},
		})
		return
	}

	worker, err := adder.AddWorker(r.Context(), body.Name)
	if err != nil {
		s.respondError(w, r, core.PersistenceFailure("failed to add agent", err), http.StatusInternalServerError, "")
		return
	}

	logging.FromContext(r.Context()).Info("agent added",
		"worker_id", worker.ID,
		"name", worker.Name,
		"owner", core.OwnerIDFromContext(r.Context()),
	)
	writeJSONStatus(w, http.StatusCreated, SuccessResponse{Success: true, Message: "Agent created", Data: worker})
}
