package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/service"
)

// TxRunner provides transactional repositories using a pgx pool.
// acquireTimeout bounds how long Begin may wait for a pool connection; once
// the transaction holds its connection the caller's context governs.
type TxRunner struct {
	pool           *pgxpool.Pool
	codec          domain.VectorCodec
	acquireTimeout time.Duration
}

func NewTxRunner(pool *pgxpool.Pool, codec domain.VectorCodec, acquireTimeout time.Duration) *TxRunner {
	return &TxRunner{pool: pool, codec: codec, acquireTimeout: acquireTimeout}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	beginCtx := ctx
	if r.acquireTimeout > 0 {
		var cancel context.CancelFunc
		beginCtx, cancel = context.WithTimeout(ctx, r.acquireTimeout)
		defer cancel()
	}
	tx, err := r.pool.Begin(beginCtx)
	if err != nil {
		return domain.NewStorageError("begin transaction", err)
	}

	repos := &txRepos{tx: tx, codec: r.codec}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.NewStorageError("commit transaction", err)
	}
	return nil
}

type txRepos struct {
	tx    pgx.Tx
	codec domain.VectorCodec
}

func (r *txRepos) KnowledgeBases() service.KnowledgeBaseRepositoryInterface {
	return NewKnowledgeBaseRepositoryWithTx(r.tx)
}

func (r *txRepos) Chunks() service.ChunkRepositoryInterface {
	return NewChunkRepositoryWithTx(r.tx, r.codec)
}
