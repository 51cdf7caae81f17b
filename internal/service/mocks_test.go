package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/pagination"
)

type MockKnowledgeBaseRepository struct {
	mock.Mock
}

func (m *MockKnowledgeBaseRepository) Create(ctx context.Context, kb *domain.KnowledgeBase) (int64, error) {
	args := m.Called(ctx, kb)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockKnowledgeBaseRepository) GetByIDs(ctx context.Context, ids []int64) ([]*domain.KnowledgeBase, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseRepository) ListByKind(ctx context.Context, kind domain.Kind, cursor *pagination.Cursor, limit int) (*KnowledgeBasePageResult, error) {
	args := m.Called(ctx, kind, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*KnowledgeBasePageResult), args.Error(1)
}

func (m *MockKnowledgeBaseRepository) Update(ctx context.Context, kb *domain.KnowledgeBase) (int64, error) {
	args := m.Called(ctx, kb)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockKnowledgeBaseRepository) Delete(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) Insert(ctx context.Context, chunk *domain.DocumentChunk) (int64, error) {
	args := m.Called(ctx, chunk)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChunkRepository) DeleteByParent(ctx context.Context, knowledgeBaseID int64) error {
	args := m.Called(ctx, knowledgeBaseID)
	return args.Error(0)
}

func (m *MockChunkRepository) Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]*SearchResult, error) {
	args := m.Called(ctx, embedding, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SearchResult), args.Error(1)
}

// mockTxRunner hands the same repositories back for every transaction, which
// is enough for unit tests that only assert call order and arguments.
type mockTxRunner struct {
	kbRepo    KnowledgeBaseRepositoryInterface
	chunkRepo ChunkRepositoryInterface
}

func (r *mockTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	return fn(r)
}

func (r *mockTxRunner) KnowledgeBases() KnowledgeBaseRepositoryInterface { return r.kbRepo }
func (r *mockTxRunner) Chunks() ChunkRepositoryInterface                 { return r.chunkRepo }

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, documents []string, directive string) (string, error) {
	args := m.Called(ctx, documents, directive)
	return args.String(0), args.Error(1)
}

func (m *MockSummarizer) TitleOf(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

type MockPageExtractor struct {
	mock.Mock
}

func (m *MockPageExtractor) Pages(ctx context.Context, path string) ([]string, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
