package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/pagination"
	"github.com/veldt-labs/corpora/internal/telemetry"
)

// KnowledgeBaseRepositoryInterface defines persistence operations for
// knowledge base entries.
type KnowledgeBaseRepositoryInterface interface {
	Create(ctx context.Context, kb *domain.KnowledgeBase) (int64, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.KnowledgeBase, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.KnowledgeBase, error)
	ListByKind(ctx context.Context, kind domain.Kind, cursor *pagination.Cursor, limit int) (*KnowledgeBasePageResult, error)
	Update(ctx context.Context, kb *domain.KnowledgeBase) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// ChunkRepositoryInterface defines persistence operations for document chunks.
type ChunkRepositoryInterface interface {
	Insert(ctx context.Context, chunk *domain.DocumentChunk) (int64, error)
	DeleteByParent(ctx context.Context, knowledgeBaseID int64) error
	Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]*SearchResult, error)
}

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	KnowledgeBaseID int64 // 0 searches all entries
	TopK            int
	Threshold       float32
}

// SearchResult is one scored chunk from a similarity search.
type SearchResult struct {
	ChunkID           int64   `json:"chunk_id"`
	Content           string  `json:"content"`
	KnowledgeBaseID   int64   `json:"knowledge_base_id"`
	KnowledgeBaseName string  `json:"knowledge_base_name"`
	Similarity        float32 `json:"similarity"`
}

// KnowledgeBasePageResult is a page of knowledge base entries.
type KnowledgeBasePageResult struct {
	Entries    []*domain.KnowledgeBase
	NextCursor string
	HasMore    bool
}

// KnowledgeBaseService manages the registry of knowledge base entries.
type KnowledgeBaseService struct {
	kbRepo   KnowledgeBaseRepositoryInterface
	txRunner TxRunner
}

func NewKnowledgeBaseService(kbRepo KnowledgeBaseRepositoryInterface, txRunner TxRunner) *KnowledgeBaseService {
	return &KnowledgeBaseService{kbRepo: kbRepo, txRunner: txRunner}
}

// ListInput filters and paginates a registry listing.
type ListInput struct {
	Kind   domain.Kind
	Cursor *string
	Limit  int
}

const defaultListLimit = 50

// List returns a page of entries of the given kind, newest id last.
func (s *KnowledgeBaseService) List(ctx context.Context, input ListInput) (*KnowledgeBasePageResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.List", telemetry.SpanAttributes{
		Kind:      string(input.Kind),
		Operation: "list",
	})
	defer span.End()

	if !domain.IsValidKind(input.Kind) {
		return nil, fmt.Errorf("list knowledge bases: %w", domain.ErrInvalidKind)
	}

	limit := input.Limit
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}

	var cursor *pagination.Cursor
	if input.Cursor != nil && *input.Cursor != "" {
		c, err := pagination.DecodeCursor(*input.Cursor)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
		}
		cursor = c
	}

	return s.kbRepo.ListByKind(ctx, input.Kind, cursor, limit)
}

// GetMany fetches entries by id. Missing ids are silently absent from the
// result.
func (s *KnowledgeBaseService) GetMany(ctx context.Context, ids []int64) ([]*domain.KnowledgeBase, error) {
	if len(ids) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "no knowledge base ids given")
	}
	return s.kbRepo.GetByIDs(ctx, ids)
}

// FindByFingerprint returns the entry previously composed from the same
// source set, or nil when none exists.
func (s *KnowledgeBaseService) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.KnowledgeBase, error) {
	return s.kbRepo.GetByFingerprint(ctx, fingerprint)
}

// UpsertInput describes a create-or-replace of a registry entry.
type UpsertInput struct {
	ID                int64 // 0 creates a new entry
	Name              string
	Content           string
	Kind              domain.Kind
	SourceFingerprint string
}

// Upsert creates a new entry or replaces an existing one. Replacing an entry
// removes all of its chunks in the same transaction, so a re-ingest never
// leaves stale vectors behind.
func (s *KnowledgeBaseService) Upsert(ctx context.Context, input UpsertInput) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Upsert", telemetry.SpanAttributes{
		KnowledgeBaseID: input.ID,
		Kind:            string(input.Kind),
		Operation:       "upsert",
	})
	defer span.End()

	kb := &domain.KnowledgeBase{
		ID:                input.ID,
		Name:              input.Name,
		Content:           input.Content,
		Kind:              input.Kind,
		SourceFingerprint: input.SourceFingerprint,
	}
	if err := domain.ValidateKnowledgeBase(kb); err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge base", err)
	}

	var id int64
	run := func(repos TxRepositories) error {
		if kb.ID == 0 {
			created, err := repos.KnowledgeBases().Create(ctx, kb)
			if err != nil {
				return err
			}
			id = created
			return nil
		}

		if err := repos.Chunks().DeleteByParent(ctx, kb.ID); err != nil {
			return err
		}
		rows, err := repos.KnowledgeBases().Update(ctx, kb)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("upsert knowledge base %d: %w", kb.ID, domain.ErrKnowledgeBaseNotFound)
		}
		id = kb.ID
		return nil
	}

	err := s.txRunner.WithTx(ctx, run)
	if errors.Is(err, domain.ErrDuplicateFingerprint) && kb.ID == 0 && kb.SourceFingerprint != "" {
		// A concurrent upsert won the fingerprint race. The loser replaces
		// the winner's entry rather than surfacing the unique violation.
		existing, lookupErr := s.kbRepo.GetByFingerprint(ctx, kb.SourceFingerprint)
		if lookupErr != nil {
			return 0, lookupErr
		}
		if existing != nil {
			kb.ID = existing.ID
			err = s.txRunner.WithTx(ctx, run)
		}
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Delete removes an entry and all of its chunks.
func (s *KnowledgeBaseService) Delete(ctx context.Context, id int64) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Delete", telemetry.SpanAttributes{
		KnowledgeBaseID: id,
		Operation:       "delete",
	})
	defer span.End()

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteByParent(ctx, id); err != nil {
			return err
		}
		rows, err := repos.KnowledgeBases().Delete(ctx, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("delete knowledge base %d: %w", id, domain.ErrKnowledgeBaseNotFound)
		}
		return nil
	})
}
