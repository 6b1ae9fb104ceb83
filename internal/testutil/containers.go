package testutil

import (
	"context"
	"testing"

	"github.com/huahuahua1223/walrusio/internal/storage"
	miniocontainer "github.com/testcontainers/testcontainers-go/modules/minio"
)

// SetupMinIO starts a throwaway MinIO container and returns a store wired
// to it. The container is terminated when the test finishes.
func SetupMinIO(t *testing.T) *storage.MinIOStore {
	t.Helper()

	ctx := context.Background()

	container, err := miniocontainer.Run(ctx,
		"minio/minio:latest",
		miniocontainer.WithUsername("minioadmin"),
		miniocontainer.WithPassword("minioadmin"),
	)
	if err != nil {
		t.Fatalf("Failed to start minio container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate minio container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get minio endpoint: %v", err)
	}

	t.Setenv("MINIO_ENDPOINT", endpoint)
	t.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	t.Setenv("MINIO_SECRET_KEY", "minioadmin")
	t.Setenv("MINIO_BUCKET_NAME", "walrusio-test")
	t.Setenv("MINIO_USE_SSL", "false")

	store, err := storage.NewMinIOStore(ctx)
	if err != nil {
		t.Fatalf("Failed to initialize MinIO store: %v", err)
	}
	return store
}
