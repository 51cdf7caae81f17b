package service

import (
	"context"
	"strings"
	"time"

	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/telemetry"
)

// RetrieveInput describes a similarity search request.
type RetrieveInput struct {
	Query           string
	KnowledgeBaseID int64 // 0 searches all entries
	TopK            int
	Threshold       float32
}

const (
	defaultTopK = 10
	maxTopK     = 100
)

// RetrievalService answers similarity queries against stored chunks.
type RetrievalService struct {
	chunkRepo     ChunkRepositoryInterface
	embedder      EmbeddingClient
	oracleTimeout time.Duration
}

func NewRetrievalService(chunkRepo ChunkRepositoryInterface, embedder EmbeddingClient, oracleTimeout time.Duration) *RetrievalService {
	if oracleTimeout <= 0 {
		oracleTimeout = 60 * time.Second
	}
	return &RetrievalService{
		chunkRepo:     chunkRepo,
		embedder:      embedder,
		oracleTimeout: oracleTimeout,
	}
}

// Retrieve embeds the query and returns the top-k most similar chunks,
// best first. A threshold of zero disables similarity filtering, so weak
// matches still surface rather than returning nothing. An empty result is a
// valid answer, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, input RetrieveInput) ([]*SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		KnowledgeBaseID: input.KnowledgeBaseID,
		Operation:       "retrieve",
	})
	defer span.End()

	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()

	embedding, err := s.embedder.GenerateEmbedding(embedCtx, input.Query)
	if err != nil {
		return nil, domain.NewEmbeddingUnavailableError(err)
	}
	if len(embedding) == 0 {
		return nil, domain.ErrEmbeddingUnavailable
	}

	results, err := s.chunkRepo.Search(ctx, embedding, SearchOptions{
		KnowledgeBaseID: input.KnowledgeBaseID,
		TopK:            topK,
		Threshold:       input.Threshold,
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []*SearchResult{}
	}
	return results, nil
}
