package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/pagination"
	"github.com/veldt-labs/corpora/internal/service"
)

// KnowledgeBaseRepository handles persistence of knowledge base entries.
// acquireTimeout bounds each operation, including the wait for a pool
// connection; zero disables the bound.
type KnowledgeBaseRepository struct {
	db dbtx
}

func NewKnowledgeBaseRepository(pool *pgxpool.Pool, acquireTimeout time.Duration) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: newBoundedDB(pool, acquireTimeout)}
}

func NewKnowledgeBaseRepositoryWithTx(tx pgx.Tx) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: tx}
}

func (r *KnowledgeBaseRepository) Create(ctx context.Context, kb *domain.KnowledgeBase) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO knowledge_base (name, content, kind, source_fingerprint, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		kb.Name, kb.Content, string(kb.Kind), nullableString(kb.SourceFingerprint), now, now,
	).Scan(&id)
	if err != nil {
		// 23505: the partial unique index on source_fingerprint. Two
		// concurrent composes of the same source set race to insert; the
		// loser gets a duplicate it can resolve as a replace.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("create knowledge base: %w", domain.ErrDuplicateFingerprint)
		}
		return 0, domain.NewStorageError("create knowledge base", err)
	}
	kb.ID = id
	kb.CreatedAt = now
	kb.UpdatedAt = now
	return id, nil
}

func (r *KnowledgeBaseRepository) GetByIDs(ctx context.Context, ids []int64) ([]*domain.KnowledgeBase, error) {
	if len(ids) == 0 {
		return []*domain.KnowledgeBase{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, name, content, kind, source_fingerprint, created_at, updated_at
		 FROM knowledge_base WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, domain.NewStorageError("get knowledge bases", err)
	}
	defer rows.Close()

	return scanKnowledgeBaseRows(rows)
}

func (r *KnowledgeBaseRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.KnowledgeBase, error) {
	if fingerprint == "" {
		return nil, nil
	}

	var kb domain.KnowledgeBase
	var fp *string
	err := r.db.QueryRow(ctx,
		`SELECT id, name, content, kind, source_fingerprint, created_at, updated_at
		 FROM knowledge_base WHERE source_fingerprint = $1`,
		fingerprint,
	).Scan(&kb.ID, &kb.Name, &kb.Content, &kb.Kind, &fp, &kb.CreatedAt, &kb.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewStorageError("get knowledge base by fingerprint", err)
	}
	if fp != nil {
		kb.SourceFingerprint = *fp
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) ListByKind(ctx context.Context, kind domain.Kind, cursor *pagination.Cursor, limit int) (*service.KnowledgeBasePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, name, content, kind, source_fingerprint, created_at, updated_at
			 FROM knowledge_base
			 WHERE kind = $1 AND id < $2
			 ORDER BY id DESC
			 LIMIT $3`,
			string(kind), cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, name, content, kind, source_fingerprint, created_at, updated_at
			 FROM knowledge_base
			 WHERE kind = $1
			 ORDER BY id DESC
			 LIMIT $2`,
			string(kind), limit+1,
		)
	}
	if err != nil {
		return nil, domain.NewStorageError("list knowledge bases", err)
	}
	defer rows.Close()

	entries, err := scanKnowledgeBaseRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	var nextCursor string
	if hasMore && len(entries) > 0 {
		nextCursor = pagination.EncodeCursor(entries[len(entries)-1].ID)
	}

	return &service.KnowledgeBasePageResult{
		Entries:    entries,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *KnowledgeBaseRepository) Update(ctx context.Context, kb *domain.KnowledgeBase) (int64, error) {
	kb.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_base
		 SET name = $2, content = $3, kind = $4, source_fingerprint = $5, updated_at = $6
		 WHERE id = $1`,
		kb.ID, kb.Name, kb.Content, string(kb.Kind), nullableString(kb.SourceFingerprint), kb.UpdatedAt,
	)
	if err != nil {
		return 0, domain.NewStorageError("update knowledge base", err)
	}
	return cmdTag.RowsAffected(), nil
}

func (r *KnowledgeBaseRepository) Delete(ctx context.Context, id int64) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM knowledge_base WHERE id = $1`, id)
	if err != nil {
		return 0, domain.NewStorageError("delete knowledge base", err)
	}
	return cmdTag.RowsAffected(), nil
}

func scanKnowledgeBaseRows(rows pgx.Rows) ([]*domain.KnowledgeBase, error) {
	var entries []*domain.KnowledgeBase
	for rows.Next() {
		var kb domain.KnowledgeBase
		var fp *string
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Content, &kb.Kind, &fp, &kb.CreatedAt, &kb.UpdatedAt); err != nil {
			return nil, domain.NewStorageError("scan knowledge base", err)
		}
		if fp != nil {
			kb.SourceFingerprint = *fp
		}
		entries = append(entries, &kb)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("read knowledge base rows", err)
	}
	return entries, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
