package upload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/huahuahua1223/walrusio/internal/session"
	"github.com/huahuahua1223/walrusio/internal/storage"
	"github.com/huahuahua1223/walrusio/internal/walrus"
)

// maxChunkAttempts bounds per-chunk retries before the chunk fails
// terminally.
const maxChunkAttempts = 3

// ChunkUploader pushes one chunk's byte range to the store, retrying per
// policy and persisting every state transition so progress survives a crash
// mid-chunk.
type ChunkUploader struct {
	store    storage.BlobStore
	sessions *session.Store
	policy   walrus.RetryPolicy
	sleep    walrus.SleepFunc
}

func NewChunkUploader(store storage.BlobStore, sessions *session.Store, sleep walrus.SleepFunc) *ChunkUploader {
	if sleep == nil {
		sleep = walrus.Sleep
	}
	return &ChunkUploader{
		store:    store,
		sessions: sessions,
		policy:   walrus.UploadPolicy(maxChunkAttempts),
		sleep:    sleep,
	}
}

// Upload sends data (the chunk's byte range) and records the outcome in
// chunk, which must point into sess.Chunks. onRetry, if set, is told about
// each scheduled retry so the caller can surface a retrying status.
func (u *ChunkUploader) Upload(ctx context.Context, sess *session.Session, chunk *session.Chunk, data []byte, contentType string, onRetry func(retryCount int)) error {
	if chunk.Status == session.ChunkCompleted && chunk.BlobID != "" {
		return nil
	}

	chunk.Status = session.ChunkUploading
	u.persist(sess)

	for attempt := 1; ; attempt++ {
		blobID, err := u.store.Put(ctx, data, contentType)
		if err == nil {
			chunk.Status = session.ChunkCompleted
			chunk.BlobID = blobID
			chunk.Error = ""
			u.persist(sess)
			return nil
		}

		slog.Warn("chunk upload attempt failed",
			slog.Int("chunk", chunk.Index),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		chunk.RetryCount = attempt
		decision := u.policy(attempt, err)
		if !decision.Retry {
			return u.fail(sess, chunk, err)
		}

		chunk.Status = session.ChunkUploading
		u.persist(sess)
		if onRetry != nil {
			onRetry(attempt)
		}

		if serr := u.sleep(ctx, decision.Delay); serr != nil {
			return u.fail(sess, chunk, serr)
		}
	}
}

func (u *ChunkUploader) fail(sess *session.Session, chunk *session.Chunk, cause error) error {
	chunk.Status = session.ChunkFailed
	chunk.Error = cause.Error()
	u.persist(sess)
	return fmt.Errorf("chunk %d failed after %d attempts: %w", chunk.Index, chunk.RetryCount, cause)
}

func (u *ChunkUploader) persist(sess *session.Session) {
	u.sessions.Save(sess.FileID, sess.Chunks, sess.FileName, sess.TotalSize)
}

// putWithRetry drives a caller-owned retry loop around single-attempt Puts.
// The small-file and manifest paths use it; chunk uploads go through
// ChunkUploader so each transition is persisted.
func putWithRetry(ctx context.Context, store storage.BlobStore, data []byte, contentType string, policy walrus.RetryPolicy, sleep walrus.SleepFunc, onRetry func(retryCount int)) (string, error) {
	var lastErr error

	for attempt := 1; ; attempt++ {
		blobID, err := store.Put(ctx, data, contentType)
		if err == nil {
			return blobID, nil
		}
		lastErr = err

		decision := policy(attempt, err)
		if !decision.Retry {
			break
		}
		if onRetry != nil {
			onRetry(attempt)
		}
		if serr := sleep(ctx, decision.Delay); serr != nil {
			return "", serr
		}
	}
	return "", lastErr
}
