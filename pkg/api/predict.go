package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AzuraForge/api/pkg/serving"
	"github.com/gorilla/mux"
)

// Scorer serves predictions from trained experiment models.
type Scorer interface {
	Predict(ctx context.Context, experimentID string, features map[string]float64) (float64, error)
}

type predictionRequest struct {
	Features map[string]float64 `json:"features"`
}

type predictionResponse struct {
	Prediction   float64 `json:"prediction"`
	ExperimentID string  `json:"experiment_id"`
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	experimentID := mux.Vars(r)["experiment_id"]

	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be {\"features\": {...}}")
		return
	}

	prediction, err := h.scorer.Predict(r.Context(), experimentID, req.Features)
	if errors.Is(err, serving.ErrModelUnavailable) {
		writeError(w, http.StatusNotFound, "MODEL_NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "PREDICTION_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, predictionResponse{Prediction: prediction, ExperimentID: experimentID})
}
