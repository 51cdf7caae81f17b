package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veldt-labs/corpora/internal/api"
	"github.com/veldt-labs/corpora/internal/api/handlers"
	"github.com/veldt-labs/corpora/internal/api/middleware"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

type RouterConfig struct {
	KnowledgeBaseHandler *handlers.KnowledgeBaseHandler
	RetrieveHandler      *handlers.RetrieveHandler
	ComposeHandler       *handlers.ComposeHandler
	UploadHandler        *handlers.UploadHandler
	JobsHandler          *handlers.JobsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, http.StatusOK, map[string]string{"version": Version})
		})

		r.Route("/knowledge-base", func(r chi.Router) {
			r.Get("/", cfg.KnowledgeBaseHandler.List)
			r.Post("/", cfg.KnowledgeBaseHandler.Ingest)
			r.Delete("/{id}", cfg.KnowledgeBaseHandler.Delete)
			r.Post("/summary", cfg.ComposeHandler.Compose)
		})

		r.Post("/retrieve", cfg.RetrieveHandler.Retrieve)
		r.Post("/upload-file", cfg.UploadHandler.Upload)
		r.Get("/jobs/{id}", cfg.JobsHandler.Get)
	})

	return r
}
