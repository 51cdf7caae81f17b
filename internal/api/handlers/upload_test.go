package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/veldt-labs/corpora/internal/jobs"
	"github.com/veldt-labs/corpora/internal/service"
)

type MockDocumentIngester struct {
	mock.Mock
}

func (m *MockDocumentIngester) IngestFiles(ctx context.Context, files []service.UploadedFile) (*service.IngestReport, error) {
	args := m.Called(ctx, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestReport), args.Error(1)
}

func multipartRequest(t *testing.T, filenames map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, content := range filenames {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-file", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadHandler_Upload(t *testing.T) {
	svc := new(MockDocumentIngester)
	queue := jobs.NewIngestQueue(4)
	handler := NewUploadHandler(svc, queue, nil, t.TempDir())

	svc.On("IngestFiles", mock.Anything, mock.MatchedBy(func(files []service.UploadedFile) bool {
		return len(files) == 1 && files[0].Name == "notes.txt"
	})).Return(&service.IngestReport{KnowledgeBaseID: 1, ChunksTotal: 1, ChunksStored: 1}, nil)

	req := multipartRequest(t, map[string]string{"notes.txt": "some notes"})
	w := httptest.NewRecorder()
	handler.Upload(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data EnqueuedResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.NoError(t, queue.ProcessJobs(context.Background()))

	state, ok := queue.Get(resp.Data.JobID)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusCompleted, state.Status)
	svc.AssertExpectations(t)
}

func TestUploadHandler_Upload_NoFiles(t *testing.T) {
	handler := NewUploadHandler(new(MockDocumentIngester), jobs.NewIngestQueue(4), nil, t.TempDir())

	req := multipartRequest(t, map[string]string{})
	w := httptest.NewRecorder()
	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadHandler_Upload_UnsupportedType(t *testing.T) {
	handler := NewUploadHandler(new(MockDocumentIngester), jobs.NewIngestQueue(4), nil, t.TempDir())

	req := multipartRequest(t, map[string]string{"archive.zip": "PK"})
	w := httptest.NewRecorder()
	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadHandler_Upload_NotMultipart(t *testing.T) {
	handler := NewUploadHandler(new(MockDocumentIngester), jobs.NewIngestQueue(4), nil, t.TempDir())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-file", bytes.NewBufferString("plain body"))
	w := httptest.NewRecorder()
	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobsHandler_Get(t *testing.T) {
	queue := jobs.NewIngestQueue(4)
	handler := NewJobsHandler(queue)

	id, err := queue.Enqueue("ingest", func(ctx context.Context) (*service.IngestReport, error) {
		return &service.IngestReport{}, nil
	})
	require.NoError(t, err)

	w := doRequest(handler.Get, http.MethodGet, "/api/jobs/{id}", "/api/jobs/"+id)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(handler.Get, http.MethodGet, "/api/jobs/{id}", "/api/jobs/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
