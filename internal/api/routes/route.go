package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/huahuahua1223/walrusio/internal/api/handlers"
	"github.com/huahuahua1223/walrusio/internal/middleware"
)

// BlobRoutes wires the relay API under one subrouter. Uploads get a tight
// per-IP limit because each one fans out into many publisher PUTs; reads
// are mostly cache hits and can run much hotter.
func BlobRoutes(h *handlers.BlobHandler) chi.Router {
	r := chi.NewRouter()

	r.With(middleware.UploadLimiter()).Post("/", h.Upload)

	r.With(middleware.SessionLimiter()).Get("/session", h.GetSession)
	r.With(middleware.SessionLimiter()).Delete("/session", h.ClearSession)

	r.With(middleware.FetchLimiter()).Get("/{blobID}", h.GetBlob)
	r.With(middleware.FetchLimiter()).Get("/{blobID}/json", h.GetBlobJSON)
	r.With(middleware.FetchLimiter()).Get("/{blobID}/content", h.GetBlobContent)

	return r
}
