package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/telemetry"
)

// EmbeddingClient produces embedding vectors for text.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkFailure records one chunk that could not be stored.
type ChunkFailure struct {
	Index      int    `json:"index"`
	HeaderPath string `json:"header_path"`
	Err        error  `json:"-"`
	Reason     string `json:"reason"`
}

// IngestReport summarizes the outcome of an ingestion run. A run with
// failures is partial, not failed: every chunk that embedded successfully is
// already committed and searchable.
type IngestReport struct {
	KnowledgeBaseID int64          `json:"knowledge_base_id"`
	ChunksTotal     int            `json:"chunks_total"`
	ChunksStored    int            `json:"chunks_stored"`
	Failures        []ChunkFailure `json:"failures,omitempty"`
}

// IngestInput describes a document to ingest.
type IngestInput struct {
	ID                int64 // 0 creates a new entry, otherwise replaces
	Name              string
	Content           string
	Kind              domain.Kind
	SourceFingerprint string
}

// IngestionService splits a document, embeds each chunk and stores the
// results under a registry entry.
type IngestionService struct {
	registry      *KnowledgeBaseService
	chunkRepo     ChunkRepositoryInterface
	embedder      EmbeddingClient
	codec         domain.VectorCodec
	chunkCfg      ChunkConfig
	workers       int
	oracleTimeout time.Duration
}

// IngestionConfig tunes the chunking and embedding stages.
type IngestionConfig struct {
	ChunkConfig   ChunkConfig
	Workers       int
	OracleTimeout time.Duration
}

func NewIngestionService(
	registry *KnowledgeBaseService,
	chunkRepo ChunkRepositoryInterface,
	embedder EmbeddingClient,
	codec domain.VectorCodec,
	cfg IngestionConfig,
) *IngestionService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := cfg.OracleTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	chunkCfg := cfg.ChunkConfig
	if chunkCfg.MaxChars <= 0 {
		chunkCfg = DefaultChunkConfig()
	}
	return &IngestionService{
		registry:      registry,
		chunkRepo:     chunkRepo,
		embedder:      embedder,
		codec:         codec,
		chunkCfg:      chunkCfg,
		workers:       workers,
		oracleTimeout: timeout,
	}
}

// Ingest splits input.Content, registers (or replaces) the entry, then embeds
// and stores each chunk. The registry write commits before any chunk is
// embedded, so a crash mid-run leaves a valid entry with a partial chunk set
// rather than orphaned chunks. Chunk failures are independent: one bad chunk
// never blocks its siblings.
func (s *IngestionService) Ingest(ctx context.Context, input IngestInput) (*IngestReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		KnowledgeBaseID: input.ID,
		Kind:            string(input.Kind),
		Operation:       "ingest",
	})
	defer span.End()

	fragments := SplitMarkdown(input.Content, s.chunkCfg)

	id, err := s.registry.Upsert(ctx, UpsertInput{
		ID:                input.ID,
		Name:              input.Name,
		Content:           input.Content,
		Kind:              input.Kind,
		SourceFingerprint: input.SourceFingerprint,
	})
	if err != nil {
		return nil, err
	}

	report := &IngestReport{
		KnowledgeBaseID: id,
		ChunksTotal:     len(fragments),
	}
	if len(fragments) == 0 {
		return report, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.workers)
	)
	for i, fragment := range fragments {
		wg.Add(1)
		sem <- struct{}{}
		go func(index int, f Fragment) {
			defer wg.Done()
			defer func() { <-sem }()

			err := s.storeChunk(ctx, id, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("ingest: knowledge base %d chunk %d (%s): %v",
					id, index, f.Headers.String(), err)
				report.Failures = append(report.Failures, ChunkFailure{
					Index:      index,
					HeaderPath: f.Headers.String(),
					Err:        err,
					Reason:     err.Error(),
				})
				return
			}
			report.ChunksStored++
		}(i, fragment)
	}
	wg.Wait()

	return report, nil
}

func (s *IngestionService) storeChunk(ctx context.Context, parentID int64, f Fragment) error {
	content := domain.ComposeChunkContent(f.Headers, f.Text)

	embedCtx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()

	embedding, err := s.embedder.GenerateEmbedding(embedCtx, content)
	if err != nil {
		return domain.NewEmbeddingUnavailableError(err)
	}
	if err := s.codec.Validate(embedding); err != nil {
		return err
	}

	_, err = s.chunkRepo.Insert(ctx, &domain.DocumentChunk{
		KnowledgeBaseID: parentID,
		Content:         content,
		Embedding:       embedding,
	})
	return err
}
