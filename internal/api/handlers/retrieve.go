package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/veldt-labs/corpora/internal/api"
	"github.com/veldt-labs/corpora/internal/service"
)

type Retriever interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) ([]*service.SearchResult, error)
}

type RetrieveHandler struct {
	svc Retriever
}

func NewRetrieveHandler(svc Retriever) *RetrieveHandler {
	return &RetrieveHandler{svc: svc}
}

type RetrieveRequest struct {
	Query           string  `json:"query"`
	KnowledgeBaseID int64   `json:"knowledge_base_id,omitempty"`
	TopK            int     `json:"top_k,omitempty"`
	Threshold       float32 `json:"threshold,omitempty"`
}

type RetrieveResponse struct {
	Results []*service.SearchResult `json:"results"`
}

// Retrieve answers a similarity query against stored chunks.
func (h *RetrieveHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.svc.Retrieve(r.Context(), service.RetrieveInput{
		Query:           req.Query,
		KnowledgeBaseID: req.KnowledgeBaseID,
		TopK:            req.TopK,
		Threshold:       req.Threshold,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, RetrieveResponse{Results: results})
}
