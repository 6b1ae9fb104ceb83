package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/huahuahua1223/walrusio/internal/blobid"
	"github.com/huahuahua1223/walrusio/internal/crypto"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore is a content-addressed BlobStore over an S3-compatible bucket.
// The blob id is the sha256 of the content, so repeated writes of the same
// bytes converge on one object, mirroring Walrus's already-certified
// behavior.
type MinIOStore struct {
	Client     *minio.Client
	BucketName string
}

// NewMinIOStore builds a store from MINIO_* environment variables and
// ensures the bucket exists.
func NewMinIOStore(ctx context.Context) (*MinIOStore, error) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"
	bucketName := os.Getenv("MINIO_BUCKET_NAME")
	if bucketName == "" {
		bucketName = "walrusio-blobs"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		slog.Info("minio bucket created successfully",
			slog.String("bucket_name", bucketName),
		)
	}

	return &MinIOStore{
		Client:     client,
		BucketName: bucketName,
	}, nil
}

func (m *MinIOStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	blobID := crypto.HashBytes(data)

	_, err := m.Client.PutObject(ctx, m.BucketName, blobID,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("failed to store blob in minio: %w", err)
	}

	return blobID, nil
}

func (m *MinIOStore) Get(ctx context.Context, blobID string) ([]byte, error) {
	id, err := blobid.Normalize(blobID)
	if err != nil {
		return nil, err
	}

	obj, err := m.Client.GetObject(ctx, m.BucketName, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get blob from minio: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", id, err)
	}
	return data, nil
}
