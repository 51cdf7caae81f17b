package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/veldt-labs/corpora/internal/domain"
)

// PageExtractor turns an uploaded file into plain-text pages.
type PageExtractor interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// UploadedFile is a file staged on local disk for ingestion.
type UploadedFile struct {
	Name string
	Path string
}

// DocumentService turns uploaded files into raw knowledge base entries. The
// extracted pages are normalized to markdown by the synthesis oracle before
// ingestion, so scanned PDFs and photos end up as searchable text.
type DocumentService struct {
	extractor  PageExtractor
	summarizer Summarizer
	ingestion  *IngestionService
}

func NewDocumentService(extractor PageExtractor, summarizer Summarizer, ingestion *IngestionService) *DocumentService {
	return &DocumentService{
		extractor:  extractor,
		summarizer: summarizer,
		ingestion:  ingestion,
	}
}

// IngestFiles extracts every file, condenses the combined pages into one
// markdown document and ingests it as a raw entry named after the files.
func (s *DocumentService) IngestFiles(ctx context.Context, files []UploadedFile) (*IngestReport, error) {
	if len(files) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "no files given")
	}

	var (
		pages []string
		names []string
	)
	for _, f := range files {
		filePages, err := s.extractor.Pages(ctx, f.Path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		pages = append(pages, filePages...)
		names = append(names, f.Name)
	}
	if len(pages) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "files contained no extractable text")
	}

	content, err := s.summarizer.Summarize(ctx, pages, "")
	if err != nil {
		return nil, domain.NewOracleUnavailableError(err)
	}

	return s.ingestion.Ingest(ctx, IngestInput{
		Name:    strings.Join(names, "; "),
		Content: content,
		Kind:    domain.KindRaw,
	})
}
