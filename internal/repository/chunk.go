package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/service"
)

// ChunkRepository handles persistence of document chunks and their
// embeddings.
type ChunkRepository struct {
	db    dbtx
	codec domain.VectorCodec
}

func NewChunkRepository(pool *pgxpool.Pool, codec domain.VectorCodec, acquireTimeout time.Duration) *ChunkRepository {
	return &ChunkRepository{db: newBoundedDB(pool, acquireTimeout), codec: codec}
}

func NewChunkRepositoryWithTx(tx dbtx, codec domain.VectorCodec) *ChunkRepository {
	return &ChunkRepository{db: tx, codec: codec}
}

func (r *ChunkRepository) Insert(ctx context.Context, chunk *domain.DocumentChunk) (int64, error) {
	if err := r.codec.Validate(chunk.Embedding); err != nil {
		return 0, err
	}

	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO document_chunks (knowledge_base_id, content, embedding, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		chunk.KnowledgeBaseID, chunk.Content, pgvector.NewVector(chunk.Embedding), createdAt,
	).Scan(&id)
	if err != nil {
		return 0, domain.NewStorageError("insert chunk", err)
	}
	chunk.ID = id
	chunk.CreatedAt = createdAt
	return id, nil
}

func (r *ChunkRepository) DeleteByParent(ctx context.Context, knowledgeBaseID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM document_chunks WHERE knowledge_base_id = $1`, knowledgeBaseID)
	if err != nil {
		return domain.NewStorageError("delete chunks", err)
	}
	return nil
}

// CountByParent returns chunk counts keyed by knowledge base id.
func (r *ChunkRepository) CountByParent(ctx context.Context, knowledgeBaseIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(knowledgeBaseIDs))
	if len(knowledgeBaseIDs) == 0 {
		return counts, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT knowledge_base_id, COUNT(*)
		 FROM document_chunks
		 WHERE knowledge_base_id = ANY($1)
		 GROUP BY knowledge_base_id`,
		knowledgeBaseIDs,
	)
	if err != nil {
		return nil, domain.NewStorageError("count chunks", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, domain.NewStorageError("scan chunk count", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("read chunk counts", err)
	}
	return counts, nil
}

// Search returns the chunks nearest to the query embedding by cosine
// distance, best first with ascending chunk id as tie-break. A zero threshold
// disables similarity filtering.
func (r *ChunkRepository) Search(ctx context.Context, embedding []float32, opts service.SearchOptions) ([]*service.SearchResult, error) {
	if err := r.codec.Validate(embedding); err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	vec := pgvector.NewVector(embedding)

	query := `
		SELECT c.id, c.content, kb.id, kb.name, 1 - (c.embedding <=> $1) AS similarity
		FROM document_chunks c
		JOIN knowledge_base kb ON kb.id = c.knowledge_base_id`
	args := []any{vec}

	var where []string
	if opts.KnowledgeBaseID > 0 {
		args = append(args, opts.KnowledgeBaseID)
		where = append(where, fmt.Sprintf("c.knowledge_base_id = $%d", len(args)))
	}
	if opts.Threshold > 0 {
		args = append(args, opts.Threshold)
		where = append(where, fmt.Sprintf("1 - (c.embedding <=> $1) >= $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			query += "\n\t\tWHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	args = append(args, opts.TopK)
	query += fmt.Sprintf("\n\t\tORDER BY c.embedding <=> $1, c.id\n\t\tLIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError("search chunks", err)
	}
	defer rows.Close()

	results := make([]*service.SearchResult, 0)
	for rows.Next() {
		var res service.SearchResult
		if err := rows.Scan(&res.ChunkID, &res.Content, &res.KnowledgeBaseID, &res.KnowledgeBaseName, &res.Similarity); err != nil {
			return nil, domain.NewStorageError("scan search result", err)
		}
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("read search results", err)
	}
	return results, nil
}
