package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/veldt-labs/corpora/internal/domain"
)

func newDocumentFixture() (*DocumentService, *MockKnowledgeBaseRepository, *MockChunkRepository, *MockEmbeddingClient, *MockSummarizer, *MockPageExtractor) {
	kbRepo := new(MockKnowledgeBaseRepository)
	chunkRepo := new(MockChunkRepository)
	embedder := new(MockEmbeddingClient)
	summarizer := new(MockSummarizer)
	extractor := new(MockPageExtractor)
	registry := NewKnowledgeBaseService(kbRepo, &mockTxRunner{kbRepo: kbRepo, chunkRepo: chunkRepo})
	ingestion := NewIngestionService(registry, chunkRepo, embedder, domain.NewVectorCodec(testDimensions), IngestionConfig{Workers: 1})
	return NewDocumentService(extractor, summarizer, ingestion), kbRepo, chunkRepo, embedder, summarizer, extractor
}

func TestDocumentService_IngestFiles(t *testing.T) {
	svc, kbRepo, chunkRepo, embedder, summarizer, extractor := newDocumentFixture()
	ctx := context.Background()

	extractor.On("Pages", ctx, "/tmp/a.pdf").Return([]string{"page one", "page two"}, nil)
	extractor.On("Pages", ctx, "/tmp/b.txt").Return([]string{"notes"}, nil)
	summarizer.On("Summarize", ctx, []string{"page one", "page two", "notes"}, "").
		Return("# Report\ncondensed text", nil)
	kbRepo.On("Create", ctx, mock.MatchedBy(func(kb *domain.KnowledgeBase) bool {
		return kb.Name == "a.pdf; b.txt" && kb.Kind == domain.KindRaw
	})).Return(int64(4), nil)
	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 2, 3, 4}, nil)
	chunkRepo.On("Insert", ctx, mock.Anything).Return(int64(1), nil)

	report, err := svc.IngestFiles(ctx, []UploadedFile{
		{Name: "a.pdf", Path: "/tmp/a.pdf"},
		{Name: "b.txt", Path: "/tmp/b.txt"},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(4), report.KnowledgeBaseID)
	kbRepo.AssertExpectations(t)
}

func TestDocumentService_IngestFiles_NoFiles(t *testing.T) {
	svc, _, _, _, _, extractor := newDocumentFixture()

	_, err := svc.IngestFiles(context.Background(), nil)

	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
	extractor.AssertNotCalled(t, "Pages", mock.Anything, mock.Anything)
}

func TestDocumentService_IngestFiles_ExtractionFailure(t *testing.T) {
	svc, _, _, _, summarizer, extractor := newDocumentFixture()
	ctx := context.Background()

	extractor.On("Pages", ctx, "/tmp/bad.pdf").Return(nil, errors.New("encrypted document"))

	_, err := svc.IngestFiles(ctx, []UploadedFile{{Name: "bad.pdf", Path: "/tmp/bad.pdf"}})

	assert.ErrorContains(t, err, "bad.pdf")
	summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentService_IngestFiles_SynthesisFailure(t *testing.T) {
	svc, kbRepo, _, _, summarizer, extractor := newDocumentFixture()
	ctx := context.Background()

	extractor.On("Pages", ctx, "/tmp/a.pdf").Return([]string{"page one"}, nil)
	summarizer.On("Summarize", ctx, []string{"page one"}, "").Return("", errors.New("quota exceeded"))

	_, err := svc.IngestFiles(ctx, []UploadedFile{{Name: "a.pdf", Path: "/tmp/a.pdf"}})

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeOracleUnavailable))
	assert.False(t, domain.IsCode(err, domain.ErrCodeEmbeddingUnavailable))
	kbRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDocumentService_IngestFiles_EmptyPages(t *testing.T) {
	svc, _, _, _, summarizer, extractor := newDocumentFixture()
	ctx := context.Background()

	extractor.On("Pages", ctx, "/tmp/blank.pdf").Return([]string{}, nil)

	_, err := svc.IngestFiles(ctx, []UploadedFile{{Name: "blank.pdf", Path: "/tmp/blank.pdf"}})

	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
	summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything, mock.Anything)
}
