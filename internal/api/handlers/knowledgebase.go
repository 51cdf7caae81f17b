package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/veldt-labs/corpora/internal/api"
	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/service"
)

type KnowledgeBaseRegistry interface {
	List(ctx context.Context, input service.ListInput) (*service.KnowledgeBasePageResult, error)
	Delete(ctx context.Context, id int64) error
}

type Ingester interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestReport, error)
}

type KnowledgeBaseHandler struct {
	registry KnowledgeBaseRegistry
	ingester Ingester
}

func NewKnowledgeBaseHandler(registry KnowledgeBaseRegistry, ingester Ingester) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{registry: registry, ingester: ingester}
}

type IngestRequest struct {
	ID      int64  `json:"id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type KnowledgeBaseResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ListResponse struct {
	Items      []*KnowledgeBaseResponse `json:"items"`
	NextCursor string                   `json:"next_cursor,omitempty"`
	HasMore    bool                     `json:"has_more"`
}

func knowledgeBaseToResponse(kb *domain.KnowledgeBase) *KnowledgeBaseResponse {
	return &KnowledgeBaseResponse{
		ID:        kb.ID,
		Name:      kb.Name,
		Kind:      string(kb.Kind),
		CreatedAt: kb.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: kb.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// List returns a page of knowledge base entries filtered by kind.
func (h *KnowledgeBaseHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = string(domain.KindRaw)
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	input := service.ListInput{
		Kind:  domain.Kind(kind),
		Limit: limit,
	}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		input.Cursor = &cursor
	}

	page, err := h.registry.List(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*KnowledgeBaseResponse, 0, len(page.Entries))
	for _, kb := range page.Entries {
		items = append(items, knowledgeBaseToResponse(kb))
	}

	api.Success(w, http.StatusOK, ListResponse{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

// Ingest creates (or replaces) a raw entry from markdown content and embeds
// its chunks before responding.
func (h *KnowledgeBaseHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	report, err := h.ingester.Ingest(r.Context(), service.IngestInput{
		ID:      req.ID,
		Name:    req.Name,
		Content: req.Content,
		Kind:    domain.KindRaw,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, report)
}

// Delete removes an entry and its chunks.
func (h *KnowledgeBaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		api.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.registry.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
