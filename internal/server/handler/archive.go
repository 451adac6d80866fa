package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/cdpguard/internal/domain"
)

// ArchiveReader defines the blob access the archive handler requires.
type ArchiveReader interface {
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// ArchiveHandler serves read access to cold-storage archives so operators
// can inspect what the archiver has rolled out of the database.
type ArchiveHandler struct {
	blobs  ArchiveReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(blobs ArchiveReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		blobs:  blobs,
		logger: logHandler(logger, "archive"),
	}
}

type archiveObjectResponse struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified,omitempty"`
}

type listArchivesResponse struct {
	Objects []archiveObjectResponse `json:"objects"`
}

// List handles GET /api/archives. The optional prefix query narrows the
// listing; by default every archived object is returned.
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "archive/"
	}

	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]archiveObjectResponse, len(infos))
	for i, info := range infos {
		out[i] = archiveObjectResponse{
			Path: info.Path,
			Size: info.Size,
		}
		if !info.LastModified.IsZero() {
			out[i].LastModified = info.LastModified.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, listArchivesResponse{Objects: out})
}

// Download handles GET /api/archives/{path...}, streaming the archived
// JSONL object back to the caller.
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "missing archive path")
		return
	}

	body, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
