// Package extract turns uploaded document files into per-page text.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// OCRClient extracts text from a base64-encoded page image via a vision model.
type OCRClient interface {
	ExtractImageText(ctx context.Context, imageBase64 string) (string, error)
}

// Extractor reads supported document formats and returns their text one page
// at a time. Image files are routed through the vision OCR oracle.
type Extractor struct {
	ocr OCRClient
}

// NewExtractor creates an Extractor. The OCR client may be nil, in which case
// image uploads are rejected.
func NewExtractor(ocr OCRClient) *Extractor {
	return &Extractor{ocr: ocr}
}

// SupportedExtension reports whether the file extension can be ingested.
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".txt", ".md", ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// Pages extracts per-page text from the file at path. The page split follows
// the source format: PDFs yield one entry per page, everything else yields a
// single entry.
func (e *Extractor) Pages(ctx context.Context, path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return readTextFile(path)
	case ".pdf":
		return readPDF(path)
	case ".docx":
		return readDOCX(path)
	case ".png", ".jpg", ".jpeg":
		return e.readImage(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filepath.Ext(path))
	}
}

func readTextFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []string{string(data)}, nil
}

func readPDF(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func readDOCX(path string) ([]string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()

	var b strings.Builder
	for _, paragraph := range strings.Split(content, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		b.WriteString(paragraph)
		b.WriteByte('\n')
	}
	return []string{b.String()}, nil
}

func (e *Extractor) readImage(ctx context.Context, path string) ([]string, error) {
	if e.ocr == nil {
		return nil, fmt.Errorf("image ingestion requires a vision model")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, err := e.ocr.ExtractImageText(ctx, base64.StdEncoding.EncodeToString(data))
	if err != nil {
		return nil, err
	}
	return []string{text}, nil
}
