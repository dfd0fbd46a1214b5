package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/AzuraForge/api/pkg/expansion"
	"github.com/AzuraForge/api/pkg/experiment"
	"github.com/AzuraForge/api/pkg/status"
	"github.com/gorilla/mux"
)

const maxConfigBytes = 1 << 20

// Submitter is the batch coordination entry point.
type Submitter interface {
	Submit(ctx context.Context, cfg expansion.Value) (experiment.SubmitResult, error)
}

// Records is the read side of the experiment store.
type Records interface {
	FindByID(ctx context.Context, id string) (*experiment.Record, error)
	ListOrderedByCreatedDesc(ctx context.Context, limit int) ([]experiment.Record, error)
}

// Resolver reconciles the live status of one task.
type Resolver interface {
	Resolve(ctx context.Context, taskID string) status.View
}

func (h *Handlers) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONFIG", "failed to read request body")
		return
	}

	cfg, err := expansion.DecodeConfig(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}

	result, err := h.submitter.Submit(r.Context(), cfg)
	if err != nil {
		var cfgErr *expansion.ConfigurationError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusBadRequest, "INVALID_CONFIG", cfgErr.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "SUBMISSION_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

func (h *Handlers) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	records, err := h.records.ListOrderedByCreatedDesc(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handlers) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := h.records.FindByID(r.Context(), id)
	if errors.Is(err, experiment.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "EXPERIMENT_NOT_FOUND", "Experiment with ID '"+id+"' not found.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LOOKUP_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleTaskStatus never fails hard: resolution trouble comes back as a
// degraded UNKNOWN view with HTTP 200, so pollers keep polling.
func (h *Handlers) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]
	view := h.resolver.Resolve(r.Context(), taskID)
	writeJSON(w, http.StatusOK, view)
}
