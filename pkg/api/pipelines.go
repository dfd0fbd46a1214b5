package api

import (
	"errors"
	"net/http"

	"github.com/AzuraForge/api/pkg/catalog"
	"github.com/gorilla/mux"
)

// handleListPipelines returns the installed pipelines as a name to
// default-config mapping.
func (h *Handlers) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines := h.catalog.List()
	out := make(map[string]interface{}, len(pipelines))
	for _, pipeline := range pipelines {
		out[pipeline.Name] = pipeline.DefaultConfig
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	pipeline, err := h.catalog.Get(name)
	if errors.Is(err, catalog.ErrPipelineNotFound) {
		writeError(w, http.StatusNotFound, "PIPELINE_NOT_FOUND", "Pipeline '"+name+"' not found in the catalog.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "CATALOG_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pipeline)
}
