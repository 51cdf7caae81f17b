package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/veldt-labs/corpora/internal/api"
	"github.com/veldt-labs/corpora/internal/extract"
	"github.com/veldt-labs/corpora/internal/jobs"
	"github.com/veldt-labs/corpora/internal/service"
)

const maxUploadMemory = 32 << 20 // 32 MiB held in memory before spilling to disk

type DocumentIngester interface {
	IngestFiles(ctx context.Context, files []service.UploadedFile) (*service.IngestReport, error)
}

// Archiver stores the original uploaded file in object storage.
type Archiver interface {
	ArchiveFile(ctx context.Context, path, filename string) (string, error)
}

type UploadHandler struct {
	svc       DocumentIngester
	queue     *jobs.IngestQueue
	archiver  Archiver // optional
	uploadDir string
}

func NewUploadHandler(svc DocumentIngester, queue *jobs.IngestQueue, archiver Archiver, uploadDir string) *UploadHandler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &UploadHandler{svc: svc, queue: queue, archiver: archiver, uploadDir: uploadDir}
}

// Upload accepts multipart files, stages them on disk and queues their
// extraction and ingestion. Staged files are removed once the job finishes.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		api.Error(w, http.StatusBadRequest, "no files provided")
		return
	}

	var staged []service.UploadedFile
	for _, fh := range fileHeaders {
		if !extract.SupportedExtension(fh.Filename) {
			cleanupStaged(staged)
			api.Error(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type: %s", fh.Filename))
			return
		}

		path, err := h.stageFile(fh.Filename, fh)
		if err != nil {
			cleanupStaged(staged)
			api.Error(w, http.StatusInternalServerError, "failed to store uploaded file")
			return
		}
		staged = append(staged, service.UploadedFile{Name: fh.Filename, Path: path})
	}

	if h.archiver != nil {
		for _, f := range staged {
			if key, err := h.archiver.ArchiveFile(r.Context(), f.Path, f.Name); err != nil {
				log.Printf("archive failed for %s: %v", f.Name, err)
			} else {
				log.Printf("archived %s as %s", f.Name, key)
			}
		}
	}

	files := staged
	jobID, err := h.queue.Enqueue("upload", func(ctx context.Context) (*service.IngestReport, error) {
		defer cleanupStaged(files)
		return h.svc.IngestFiles(ctx, files)
	})
	if err != nil {
		cleanupStaged(staged)
		api.Error(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	api.Success(w, http.StatusAccepted, EnqueuedResponse{JobID: jobID})
}

func (h *UploadHandler) stageFile(filename string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(h.uploadDir, uuid.NewString()+"-"+filepath.Base(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func cleanupStaged(files []service.UploadedFile) {
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove staged file %s: %v", f.Path, err)
		}
	}
}
