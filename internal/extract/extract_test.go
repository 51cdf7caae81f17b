package extract

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOCRClient struct {
	mock.Mock
}

func (m *MockOCRClient) ExtractImageText(ctx context.Context, imageBase64 string) (string, error) {
	args := m.Called(ctx, imageBase64)
	return args.String(0), args.Error(1)
}

func TestSupportedExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"report.pdf", true},
		{"notes.docx", true},
		{"readme.txt", true},
		{"doc.md", true},
		{"scan.png", true},
		{"scan.JPG", true},
		{"photo.jpeg", true},
		{"slides.pptx", false},
		{"archive.zip", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, SupportedExtension(tt.filename))
		})
	}
}

func TestExtractor_Pages_TextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("# Heading\n\nbody text"), 0o644))

	e := NewExtractor(nil)
	pages, err := e.Pages(context.Background(), path)

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "# Heading\n\nbody text", pages[0])
}

func TestExtractor_Pages_Image(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	imageData := []byte{0x89, 0x50, 0x4e, 0x47}
	require.NoError(t, os.WriteFile(path, imageData, 0o644))

	ocr := new(MockOCRClient)
	ocr.On("ExtractImageText", mock.Anything, base64.StdEncoding.EncodeToString(imageData)).
		Return("extracted text", nil)

	e := NewExtractor(ocr)
	pages, err := e.Pages(context.Background(), path)

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "extracted text", pages[0])
	ocr.AssertExpectations(t)
}

func TestExtractor_Pages_ImageWithoutOCR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89}, 0o644))

	e := NewExtractor(nil)
	_, err := e.Pages(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vision model")
}

func TestExtractor_Pages_UnsupportedFormat(t *testing.T) {
	e := NewExtractor(nil)
	_, err := e.Pages(context.Background(), "slides.pptx")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}
