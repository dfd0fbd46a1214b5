package api

import (
	"encoding/json"
	"net/http"

	"github.com/AzuraForge/api/pkg/common/logger"
)

// errorBody is the structured error envelope every failed request returns.
// Clients branch on error_code, humans read message.
type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorBody{ErrorCode: code, Message: message})
}
