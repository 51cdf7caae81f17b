package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/veldt-labs/corpora/internal/api"
	"github.com/veldt-labs/corpora/internal/jobs"
	"github.com/veldt-labs/corpora/internal/service"
)

type Composer interface {
	Compose(ctx context.Context, input service.ComposeInput) (*service.IngestReport, error)
}

type ComposeHandler struct {
	svc   Composer
	queue *jobs.IngestQueue
}

func NewComposeHandler(svc Composer, queue *jobs.IngestQueue) *ComposeHandler {
	return &ComposeHandler{svc: svc, queue: queue}
}

type ComposeRequest struct {
	SourceIDs []int64 `json:"source_ids"`
	Directive string  `json:"directive,omitempty"`
}

type EnqueuedResponse struct {
	JobID string `json:"job_id"`
}

// Compose synthesizes a set of raw entries into one processed entry. The
// synthesis involves two model calls plus a full ingest, so it runs in the
// background and the client polls the returned job id.
func (h *ComposeHandler) Compose(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.SourceIDs) == 0 {
		api.Error(w, http.StatusBadRequest, "source_ids is required")
		return
	}

	input := service.ComposeInput{
		SourceIDs: req.SourceIDs,
		Directive: req.Directive,
	}

	jobID, err := h.queue.Enqueue("compose", func(ctx context.Context) (*service.IngestReport, error) {
		return h.svc.Compose(ctx, input)
	})
	if err != nil {
		api.Error(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	api.Success(w, http.StatusAccepted, EnqueuedResponse{JobID: jobID})
}
