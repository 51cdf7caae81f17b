//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/pagination"
	"github.com/veldt-labs/corpora/internal/service"
	"github.com/veldt-labs/corpora/internal/testutil"
)

func createEntry(ctx context.Context, t *testing.T, repo *KnowledgeBaseRepository, name string, kind domain.Kind) int64 {
	t.Helper()
	id, err := repo.Create(ctx, &domain.KnowledgeBase{
		Name:    name,
		Content: "content of " + name,
		Kind:    kind,
	})
	require.NoError(t, err)
	return id
}

func TestKnowledgeBaseRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeBaseRepository(pool, 0)

	id, err := repo.Create(ctx, &domain.KnowledgeBase{
		Name:    "Release Notes",
		Content: "# v1.0\ninitial release",
		Kind:    domain.KindRaw,
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	entries, err := repo.GetByIDs(ctx, []int64{id})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Release Notes", entries[0].Name)
	assert.Equal(t, domain.KindRaw, entries[0].Kind)
	assert.Empty(t, entries[0].SourceFingerprint)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestKnowledgeBaseRepository_GetByIDs_MissingIgnored(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeBaseRepository(pool, 0)
	id := createEntry(ctx, t, repo, "only", domain.KindRaw)

	entries, err := repo.GetByIDs(ctx, []int64{id, 99999})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestKnowledgeBaseRepository_Fingerprint(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeBaseRepository(pool, 0)

	id, err := repo.Create(ctx, &domain.KnowledgeBase{
		Name:              "Synthesis",
		Content:           "combined",
		Kind:              domain.KindProcessed,
		SourceFingerprint: "abc123",
	})
	require.NoError(t, err)

	found, err := repo.GetByFingerprint(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, "abc123", found.SourceFingerprint)

	missing, err := repo.GetByFingerprint(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestKnowledgeBaseRepository_ListByKind_Pagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeBaseRepository(pool, 0)

	for i := 0; i < 5; i++ {
		createEntry(ctx, t, repo, fmt.Sprintf("raw-%d", i), domain.KindRaw)
	}
	createEntry(ctx, t, repo, "processed-0", domain.KindProcessed)

	page, err := repo.ListByKind(ctx, domain.KindRaw, nil, 3)
	require.NoError(t, err)
	assert.Len(t, page.Entries, 3)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, "raw-4", page.Entries[0].Name)

	cursor, err := pagination.DecodeCursor(page.NextCursor)
	require.NoError(t, err)

	page2, err := repo.ListByKind(ctx, domain.KindRaw, cursor, 3)
	require.NoError(t, err)
	assert.Len(t, page2.Entries, 2)
	assert.False(t, page2.HasMore)
	assert.Empty(t, page2.NextCursor)

	processed, err := repo.ListByKind(ctx, domain.KindProcessed, nil, 10)
	require.NoError(t, err)
	assert.Len(t, processed.Entries, 1)
	assert.Equal(t, "processed-0", processed.Entries[0].Name)
}

func TestKnowledgeBaseRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeBaseRepository(pool, 0)
	id := createEntry(ctx, t, repo, "before", domain.KindRaw)

	rows, err := repo.Update(ctx, &domain.KnowledgeBase{
		ID:      id,
		Name:    "after",
		Content: "new content",
		Kind:    domain.KindRaw,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	entries, err := repo.GetByIDs(ctx, []int64{id})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "after", entries[0].Name)
	assert.True(t, entries[0].UpdatedAt.After(entries[0].CreatedAt) ||
		entries[0].UpdatedAt.Equal(entries[0].CreatedAt))

	rows, err = repo.Update(ctx, &domain.KnowledgeBase{ID: 99999, Name: "x", Content: "y", Kind: domain.KindRaw})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	rows, err = repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestKnowledgeBaseRepository_Create_DuplicateFingerprint(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeBaseRepository(pool, 0)
	fingerprint := "503a1fee0640e41e1c8615a34d67d24b9435a1a926c24971900fd23e7d48b1cf"

	_, err := repo.Create(ctx, &domain.KnowledgeBase{
		Name:              "winner",
		Content:           "synthesis",
		Kind:              domain.KindProcessed,
		SourceFingerprint: fingerprint,
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &domain.KnowledgeBase{
		Name:              "loser",
		Content:           "synthesis",
		Kind:              domain.KindProcessed,
		SourceFingerprint: fingerprint,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateFingerprint)
}

func TestKnowledgeBaseRepository_AcquireTimeout_PoolExhausted(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	// Run migrations through the usual pool, then do the work on a
	// single-connection pool so holding one connection exhausts it.
	setupPool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	setupPool.Close()

	poolCfg, err := pgxpool.ParseConfig(pc.ConnectionString())
	require.NoError(t, err)
	poolCfg.MaxConns = 1
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	require.NoError(t, err)
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	repo := NewKnowledgeBaseRepository(pool, 250*time.Millisecond)
	start := time.Now()
	_, err = repo.GetByIDs(ctx, []int64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)

	runner := NewTxRunner(pool, domain.NewVectorCodec(4), 250*time.Millisecond)
	err = runner.WithTx(ctx, func(repos service.TxRepositories) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
