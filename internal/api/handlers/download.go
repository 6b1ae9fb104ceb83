package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/huahuahua1223/walrusio/internal/blobid"
	"github.com/huahuahua1223/walrusio/internal/content"
	"github.com/huahuahua1223/walrusio/internal/logger"
	"github.com/huahuahua1223/walrusio/internal/utils"
	"github.com/huahuahua1223/walrusio/internal/walrus"
)

// GetBlob serves the raw bytes behind a blob id. Manifest blobs are
// reassembled into the original file; anything else is returned as-is.
func (h *BlobHandler) GetBlob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	blobID := chi.URLParam(r, "blobID")

	assembled, err := h.reassembler.FetchManifestContent(r.Context(), blobID)
	if err == nil {
		if assembled.FileName != "" {
			w.Header().Set("Content-Disposition", `inline; filename="`+assembled.FileName+`"`)
		}
		utils.WriteRaw(w, assembled.MimeType, assembled.Data)
		return
	}

	if !errors.Is(err, content.ErrInvalidManifest) {
		h.writeFetchError(w, log, blobID, err)
		return
	}

	// Not a manifest; serve the blob itself.
	data, err := h.fetcher.Get(r.Context(), blobID)
	if err != nil {
		h.writeFetchError(w, log, blobID, err)
		return
	}
	utils.WriteRaw(w, http.DetectContentType(data), data)
}

// GetBlobJSON parses the blob as JSON. Failures come back as 200 with a
// sentinel body so list clients render a degraded item instead of erroring.
func (h *BlobHandler) GetBlobJSON(w http.ResponseWriter, r *http.Request) {
	blobID := chi.URLParam(r, "blobID")
	utils.Ok(w, h.reassembler.FetchJSON(r.Context(), blobID))
}

// GetBlobContent parses the blob as JSON with a plain-text fallback.
func (h *BlobHandler) GetBlobContent(w http.ResponseWriter, r *http.Request) {
	blobID := chi.URLParam(r, "blobID")
	utils.Ok(w, h.reassembler.FetchContent(r.Context(), blobID))
}

func (h *BlobHandler) writeFetchError(w http.ResponseWriter, log *slog.Logger, blobID string, err error) {
	status := http.StatusBadGateway
	message := "Failed to fetch blob"

	switch {
	case errors.Is(err, blobid.ErrInvalidIdentifier):
		status = http.StatusBadRequest
		message = "Invalid blob identifier"
	case walrus.IsNotFound(err):
		status = http.StatusNotFound
		message = "Blob not found"
	}

	log.Warn("blob fetch failed",
		slog.String("blob_id", blobID),
		slog.String("error", err.Error()),
		slog.Int("http_status", status),
	)
	utils.Error(w, status, message)
}
