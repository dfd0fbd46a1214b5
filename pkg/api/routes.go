// Package api exposes the orchestrator over HTTP and WebSocket.
package api

import (
	"net/http"

	"github.com/AzuraForge/api/pkg/catalog"
	"github.com/AzuraForge/api/pkg/relay"
	"github.com/gorilla/mux"
)

type Handlers struct {
	submitter Submitter
	records   Records
	resolver  Resolver
	catalog   *catalog.Catalog
	scorer    Scorer
}

func NewHandlers(submitter Submitter, records Records, resolver Resolver, cat *catalog.Catalog, scorer Scorer) *Handlers {
	return &Handlers{
		submitter: submitter,
		records:   records,
		resolver:  resolver,
		catalog:   cat,
		scorer:    scorer,
	}
}

func Register(router *mux.Router, h *Handlers, progress *relay.Handler) {
	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/experiments", h.handleCreateExperiment).Methods(http.MethodPost)
	v1.HandleFunc("/experiments", h.handleListExperiments).Methods(http.MethodGet)
	v1.HandleFunc("/experiments/{id}", h.handleGetExperiment).Methods(http.MethodGet)
	v1.HandleFunc("/tasks/{task_id}/status", h.handleTaskStatus).Methods(http.MethodGet)
	v1.HandleFunc("/pipelines", h.handleListPipelines).Methods(http.MethodGet)
	v1.HandleFunc("/pipelines/{name}", h.handleGetPipeline).Methods(http.MethodGet)
	v1.HandleFunc("/predict/{experiment_id}", h.handlePredict).Methods(http.MethodPost)

	router.HandleFunc("/ws/task_status/{task_id}", progress.HandleTaskProgress)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
