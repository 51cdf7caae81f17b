package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/telemetry"
)

// Summarizer synthesizes and titles documents.
type Summarizer interface {
	Summarize(ctx context.Context, documents []string, directive string) (string, error)
	TitleOf(ctx context.Context, text string) (string, error)
}

// ComposeService builds processed knowledge base entries by synthesizing a
// set of raw entries into a single document and ingesting the result.
type ComposeService struct {
	registry   *KnowledgeBaseService
	ingestion  *IngestionService
	summarizer Summarizer
}

func NewComposeService(registry *KnowledgeBaseService, ingestion *IngestionService, summarizer Summarizer) *ComposeService {
	return &ComposeService{
		registry:   registry,
		ingestion:  ingestion,
		summarizer: summarizer,
	}
}

// ComposeInput names the raw entries to synthesize and an optional directive
// steering the synthesis.
type ComposeInput struct {
	SourceIDs []int64
	Directive string
}

// Compose synthesizes the named entries into one processed entry. Composing
// the same source set twice replaces the earlier result instead of creating a
// duplicate: the sorted source id set is fingerprinted and the fingerprint is
// stored on the produced entry.
func (s *ComposeService) Compose(ctx context.Context, input ComposeInput) (*IngestReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "ComposeService.Compose", telemetry.SpanAttributes{
		Operation: "compose",
	})
	defer span.End()

	entries, err := s.registry.GetMany(ctx, input.SourceIDs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("compose: no sources found: %w", domain.ErrKnowledgeBaseNotFound)
	}

	byID := make(map[int64]*domain.KnowledgeBase, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	documents := make([]string, 0, len(entries))
	for _, id := range input.SourceIDs {
		if e, ok := byID[id]; ok {
			documents = append(documents, e.Content)
		}
	}

	fingerprint := SourceFingerprint(input.SourceIDs)
	existing, err := s.registry.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	var existingID int64
	if existing != nil {
		existingID = existing.ID
	}

	synthesis, err := s.summarizer.Summarize(ctx, documents, input.Directive)
	if err != nil {
		return nil, domain.NewOracleUnavailableError(err)
	}
	title, err := s.summarizer.TitleOf(ctx, synthesis)
	if err != nil || strings.TrimSpace(title) == "" {
		title = fallbackTitle(entries)
	}

	return s.ingestion.Ingest(ctx, IngestInput{
		ID:                existingID,
		Name:              title,
		Content:           synthesis,
		Kind:              domain.KindProcessed,
		SourceFingerprint: fingerprint,
	})
}

// SourceFingerprint derives a stable identity for a source id set. Order and
// duplicates do not affect the result.
func SourceFingerprint(ids []int64) string {
	uniq := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}
	sorted := make([]int64, 0, len(uniq))
	for id := range uniq {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

func fallbackTitle(entries []*domain.KnowledgeBase) string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return "Synthesis of " + strings.Join(names, ", ")
}
