package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/huahuahua1223/walrusio/internal/api/handlers"
	"github.com/huahuahua1223/walrusio/internal/api/routes"
	"github.com/huahuahua1223/walrusio/internal/content"
	"github.com/huahuahua1223/walrusio/internal/logger"
	"github.com/huahuahua1223/walrusio/internal/middleware"
	"github.com/huahuahua1223/walrusio/internal/scheduler"
	"github.com/huahuahua1223/walrusio/internal/session"
	"github.com/huahuahua1223/walrusio/internal/storage"
	"github.com/huahuahua1223/walrusio/internal/upload"
	"github.com/huahuahua1223/walrusio/internal/walrus"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Init()

	ctx := context.Background()

	slog.Info("starting walrusio blob relay",
		slog.String("version", "1.0.0"),
	)

	store, err := newBlobStore(ctx)
	if err != nil {
		slog.Error("failed to initialize blob store",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	sessions, err := session.NewStore("")
	if err != nil {
		slog.Error("failed to initialize session store",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	orchestrator := upload.NewOrchestrator(store, sessions, upload.Config{})
	reassembler := content.NewReassembler(store)

	sched := scheduler.New(sessions, reassembler, 5*time.Minute, 30*time.Minute)
	sched.Start(ctx)

	r := chi.NewRouter()

	r.Use(middleware.CORS)
	r.Use(logger.RequestID)
	r.Use(logger.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	blobHandler := handlers.NewBlobHandler(orchestrator, reassembler, store, sessions)
	r.Mount("/api/v1/blobs", routes.BlobRoutes(blobHandler))

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	slog.Info("server starting",
		slog.String("port", port),
		slog.String("address", fmt.Sprintf("http://localhost:%s", port)),
	)

	if err := http.ListenAndServe(":"+port, r); err != nil {
		slog.Error("server failed",
			slog.String("error", err.Error()),
			slog.String("port", port),
		)
		os.Exit(1)
	}
}

// newBlobStore picks the backend from STORAGE_BACKEND: the public Walrus
// network by default, or a self-hosted MinIO bucket.
func newBlobStore(ctx context.Context) (storage.BlobStore, error) {
	backend := os.Getenv("STORAGE_BACKEND")
	switch backend {
	case "", "walrus":
		cfg := walrus.LoadConfig()
		slog.Info("using walrus blob store",
			slog.String("publisher", cfg.PublisherURL),
			slog.String("aggregator", cfg.AggregatorURL),
		)
		return walrus.NewClient(cfg), nil
	case "minio":
		store, err := storage.NewMinIOStore(ctx)
		if err != nil {
			return nil, err
		}
		slog.Info("using minio blob store",
			slog.String("bucket", store.BucketName),
		)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", backend)
	}
}
