package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veldt-labs/corpora/internal/api"
	"github.com/veldt-labs/corpora/internal/jobs"
)

type JobsHandler struct {
	queue *jobs.IngestQueue
}

func NewJobsHandler(queue *jobs.IngestQueue) *JobsHandler {
	return &JobsHandler{queue: queue}
}

// Get reports the state of a background ingestion or composition job.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	state, ok := h.queue.Get(id)
	if !ok {
		api.Error(w, http.StatusNotFound, "job not found")
		return
	}

	api.Success(w, http.StatusOK, state)
}
