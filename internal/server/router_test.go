package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/veldt-labs/corpora/internal/api/handlers"
	"github.com/veldt-labs/corpora/internal/jobs"
	"github.com/veldt-labs/corpora/internal/service"
)

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, input service.RetrieveInput) ([]*service.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.SearchResult), args.Error(1)
}

func newTestRouter(retriever *MockRetriever) http.Handler {
	queue := jobs.NewIngestQueue(4)
	return NewRouter(RouterConfig{
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(nil, nil),
		RetrieveHandler:      handlers.NewRetrieveHandler(retriever),
		ComposeHandler:       handlers.NewComposeHandler(nil, queue),
		UploadHandler:        handlers.NewUploadHandler(nil, queue, nil, ""),
		JobsHandler:          handlers.NewJobsHandler(queue),
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(new(MockRetriever))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Data["status"])
}

func TestRouter_Version(t *testing.T) {
	router := newTestRouter(new(MockRetriever))

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data["version"])
}

func TestRouter_Retrieve(t *testing.T) {
	retriever := new(MockRetriever)
	retriever.On("Retrieve", mock.Anything, mock.Anything).Return([]*service.SearchResult{}, nil)

	router := newTestRouter(retriever)

	req := httptest.NewRequest(http.MethodPost, "/api/retrieve", jsonBody(`{"query":"q"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	retriever.AssertExpectations(t)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(new(MockRetriever))

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	router := newTestRouter(new(MockRetriever))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}
