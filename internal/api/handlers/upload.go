package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/huahuahua1223/walrusio/internal/api/types"
	"github.com/huahuahua1223/walrusio/internal/content"
	"github.com/huahuahua1223/walrusio/internal/logger"
	"github.com/huahuahua1223/walrusio/internal/session"
	"github.com/huahuahua1223/walrusio/internal/upload"
	"github.com/huahuahua1223/walrusio/internal/utils"
	"github.com/huahuahua1223/walrusio/internal/walrus"
)

const defaultMaxUploadBytes = 200 << 20

// BlobHandler serves the relay API: file uploads into the blob store and
// content retrieval out of it.
type BlobHandler struct {
	orchestrator *upload.Orchestrator
	reassembler  *content.Reassembler
	fetcher      content.Fetcher
	sessions     *session.Store
	maxBytes     int64
}

func NewBlobHandler(
	orchestrator *upload.Orchestrator,
	reassembler *content.Reassembler,
	fetcher content.Fetcher,
	sessions *session.Store,
) *BlobHandler {
	return &BlobHandler{
		orchestrator: orchestrator,
		reassembler:  reassembler,
		fetcher:      fetcher,
		sessions:     sessions,
		maxBytes:     maxUploadBytes(),
	}
}

func maxUploadBytes() int64 {
	if val := os.Getenv("MAX_UPLOAD_BYTES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultMaxUploadBytes
}

// Upload accepts one multipart file and drives the whole pipeline: chunking,
// per-chunk retries, manifest. The response carries the blob id to retrieve
// the file with. Requests block until the upload settles; the per-route rate
// limit keeps the publisher fan-out bounded.
func (h *BlobHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.Error(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.Error(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	src := upload.NewSource(file, header.Size, header.Filename,
		header.Header.Get("Content-Type"), time.Now())

	log.Info("upload started",
		slog.String("file_name", src.Name),
		slog.Int64("size", src.Size),
		slog.String("mime_type", src.MimeType),
	)

	onStatus := func(s upload.Status) {
		log.Debug("upload progress",
			slog.String("state", string(s.State)),
			slog.Int("progress", s.Progress),
			slog.String("message", s.Message),
		)
	}

	blobID, err := h.orchestrator.UploadFile(r.Context(), src, nil, onStatus)
	if err != nil {
		status, msg := mapUploadError(err)
		log.Error("upload failed",
			slog.String("file_name", src.Name),
			slog.String("error", err.Error()),
			slog.Int("http_status", status),
		)
		utils.Error(w, status, msg)
		return
	}

	log.Info("upload completed",
		slog.String("file_name", src.Name),
		slog.String("blob_id", blobID),
	)

	utils.Created(w, types.UploadResponse{
		BlobID:     blobID,
		FileName:   src.Name,
		Size:       src.Size,
		MimeType:   src.MimeType,
		Chunked:    src.Size > upload.DefaultSmallFileLimit,
		UploadedAt: time.Now(),
		URL:        fmt.Sprintf("/api/v1/blobs/%s", blobID),
	})
}

// GetSession reports the persisted progress of an interrupted upload so a
// client can offer to resume it.
func (h *BlobHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Current()
	if sess == nil {
		utils.Error(w, http.StatusNotFound, "No resumable upload session")
		return
	}

	utils.Ok(w, types.SessionResponse{
		FileID:          sess.FileID,
		FileName:        sess.FileName,
		TotalSize:       sess.TotalSize,
		TotalChunks:     len(sess.Chunks),
		CompletedChunks: session.CompletedChunks(sess.Chunks),
	})
}

// ClearSession cancels any in-flight upload and drops the persisted slot.
func (h *BlobHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.Cancel()
	utils.Ok(w, nil)
}

func mapUploadError(err error) (int, string) {
	switch {
	case walrus.IsRateLimited(err):
		return http.StatusTooManyRequests, "Storage network is rate limiting uploads, try again later"
	case errors.Is(err, upload.ErrCancelled):
		return http.StatusConflict, "Upload was cancelled"
	case errors.Is(err, upload.ErrConsecutiveFailures):
		return http.StatusBadGateway, "Storage network rejected too many chunks in a row"
	case errors.Is(err, upload.ErrPartialManifest):
		return http.StatusBadGateway, "Upload incomplete; retry to resume"
	case errors.Is(err, upload.ErrUploadFailed):
		return http.StatusBadGateway, "Failed to store file"
	default:
		return http.StatusInternalServerError, "Upload failed"
	}
}
