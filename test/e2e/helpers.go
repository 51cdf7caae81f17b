//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veldt-labs/corpora/internal/api/handlers"
	"github.com/veldt-labs/corpora/internal/domain"
	"github.com/veldt-labs/corpora/internal/extract"
	"github.com/veldt-labs/corpora/internal/jobs"
	"github.com/veldt-labs/corpora/internal/repository"
	"github.com/veldt-labs/corpora/internal/server"
	"github.com/veldt-labs/corpora/internal/service"
	"github.com/veldt-labs/corpora/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with a database container
// and a running server backed by a deterministic embedding stub, so tests
// exercise the whole stack without a live model endpoint.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if len(respBody) == 0 {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// PostMultipart uploads files under the "files" form field.
func (e *E2ETestEnv) PostMultipart(path string, files map[string][]byte) (*APIResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(content); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// WaitForJob polls the job endpoint until the job finishes or the timeout
// elapses, and returns its final state.
func (e *E2ETestEnv) WaitForJob(jobID string, timeout time.Duration) *jobs.JobState {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/api/jobs/" + jobID)
		if err != nil {
			e.T.Fatalf("failed to poll job %s: %v", jobID, err)
		}

		var state jobs.JobState
		if err := json.Unmarshal(resp.Data, &state); err != nil {
			e.T.Fatalf("failed to parse job state: %v", err)
		}
		if state.Status == jobs.StatusCompleted || state.Status == jobs.StatusFailed {
			return &state
		}
		time.Sleep(50 * time.Millisecond)
	}
	e.T.Fatalf("job %s did not finish within %v", jobID, timeout)
	return nil
}

// stubEmbedder produces deterministic bag-of-words embeddings: each word
// hashes to an axis, so texts sharing vocabulary land close together. This
// makes similarity ordering predictable without a live embedding endpoint.
type stubEmbedder struct {
	dimension int
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, s.dimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?#*()[]\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vector[h.Sum32()%uint32(s.dimension)] += 1.0
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vector[0] = 1.0
		return vector, nil
	}
	scale := float32(1.0 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector, nil
}

// stubSummarizer joins documents into a single markdown synthesis without a
// chat model.
type stubSummarizer struct{}

func (s *stubSummarizer) Summarize(ctx context.Context, documents []string, directive string) (string, error) {
	var b strings.Builder
	b.WriteString("# Synthesis\n\n")
	if directive != "" {
		b.WriteString(directive)
		b.WriteString("\n\n")
	}
	for i, doc := range documents {
		fmt.Fprintf(&b, "## Source %d\n\n%s\n\n", i+1, doc)
	}
	return b.String(), nil
}

func (s *stubSummarizer) TitleOf(ctx context.Context, text string) (string, error) {
	return "Synthesized Overview", nil
}

// startServer starts the HTTP server with all handlers and a background worker
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func()) {
	codec := domain.NewVectorCodec(domain.DefaultVectorDimension)
	embedder := &stubEmbedder{dimension: domain.DefaultVectorDimension}
	summarizer := &stubSummarizer{}

	kbRepo := repository.NewKnowledgeBaseRepository(pool, 10*time.Second)
	chunkRepo := repository.NewChunkRepository(pool, codec, 10*time.Second)
	txRunner := repository.NewTxRunner(pool, codec, 10*time.Second)

	registry := service.NewKnowledgeBaseService(kbRepo, txRunner)
	ingestion := service.NewIngestionService(registry, chunkRepo, embedder, codec, service.IngestionConfig{})
	retrieval := service.NewRetrievalService(chunkRepo, embedder, 10*time.Second)
	composer := service.NewComposeService(registry, ingestion, summarizer)
	extractor := extract.NewExtractor(nil)
	documents := service.NewDocumentService(extractor, summarizer, ingestion)

	queue := jobs.NewIngestQueue(16)
	worker := jobs.NewWorker(queue, 25*time.Millisecond)
	go worker.Start(context.Background())

	cfg := server.RouterConfig{
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(registry, ingestion),
		RetrieveHandler:      handlers.NewRetrieveHandler(retrieval),
		ComposeHandler:       handlers.NewComposeHandler(composer, queue),
		UploadHandler:        handlers.NewUploadHandler(documents, queue, nil, t.TempDir()),
		JobsHandler:          handlers.NewJobsHandler(queue),
	}

	router := server.NewRouter(cfg)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		worker.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
