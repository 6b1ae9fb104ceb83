// Package upload implements the resumable chunked upload pipeline: a file
// is split into fixed-size chunks, each chunk is PUT with bounded retries,
// progress is persisted so an interrupted upload resumes across process
// restarts, and a manifest blob ties the completed chunks together.
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/huahuahua1223/walrusio/internal/session"
	"github.com/huahuahua1223/walrusio/internal/storage"
	"github.com/huahuahua1223/walrusio/internal/walrus"
)

const (
	// maxConsecutiveFailures aborts the whole upload once this many chunks
	// in a row fail terminally.
	maxConsecutiveFailures = 3

	maxManifestAttempts = 3

	defaultInterChunkDelay = 500 * time.Millisecond
	defaultSettleDelay     = 2 * time.Second

	// Chunk uploads cover the first 80% of reported progress; the
	// remaining 20% belongs to the manifest, so callers never see 100%
	// before the manifest is durably stored.
	chunkProgressCeiling = 80
)

type Config struct {
	ChunkSize      int64
	SmallFileLimit int64

	// Pause between chunks; keeps a serial upload under the publisher's
	// rate limit.
	InterChunkDelay time.Duration

	// Pause between the last chunk and the manifest PUT.
	ManifestSettleDelay time.Duration

	Sleep walrus.SleepFunc
}

// Orchestrator drives whole-file uploads. One Orchestrator supports one
// upload at a time: the session store has a single slot, so a second
// concurrent UploadFile would overwrite the first's persisted progress.
type Orchestrator struct {
	store     storage.BlobStore
	sessions  *session.Store
	uploader  *ChunkUploader
	cfg       Config
	cancelled atomic.Bool
}

func NewOrchestrator(store storage.BlobStore, sessions *session.Store, cfg Config) *Orchestrator {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.SmallFileLimit == 0 {
		cfg.SmallFileLimit = DefaultSmallFileLimit
	}
	if cfg.InterChunkDelay == 0 {
		cfg.InterChunkDelay = defaultInterChunkDelay
	}
	if cfg.ManifestSettleDelay == 0 {
		cfg.ManifestSettleDelay = defaultSettleDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = walrus.Sleep
	}

	return &Orchestrator{
		store:    store,
		sessions: sessions,
		uploader: NewChunkUploader(store, sessions, cfg.Sleep),
		cfg:      cfg,
	}
}

// UploadFile uploads src and returns the blob id callers use for retrieval:
// the manifest id for chunked files, the content's own id for small ones.
func (o *Orchestrator) UploadFile(ctx context.Context, src *Source, onProgress ProgressFunc, onStatus StatusFunc) (string, error) {
	o.cancelled.Store(false)
	rep := newReporter(onProgress, onStatus)

	rep.report(Status{State: StateUploading, Message: "starting upload"})

	if src.Size <= o.cfg.SmallFileLimit {
		rep.report(Status{State: StateUploading, Progress: 5, Message: "uploading file"})
		return o.uploadSmall(ctx, src, rep)
	}
	return o.uploadChunked(ctx, src, rep)
}

// Cancel clears the persisted session and stops the in-flight upload at its
// next checkpoint. Cooperative: an already-dispatched PUT still completes
// and its result is discarded.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
	o.sessions.Clear()
	slog.Info("upload cancelled, session cleared")
}

// uploadSmall is the direct path for files at or under the small-file
// limit: one PUT of the whole payload, no manifest indirection.
func (o *Orchestrator) uploadSmall(ctx context.Context, src *Source, rep *reporter) (string, error) {
	data, err := src.ReadAll()
	if err != nil {
		rep.report(Status{State: StateFailed, Message: "failed to read file", Error: err.Error()})
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	blobID, err := putWithRetry(ctx, o.store, data, src.MimeType,
		walrus.UploadPolicy(maxChunkAttempts), o.cfg.Sleep,
		func(retryCount int) {
			rep.report(Status{State: StateRetrying, Message: "upload failed, retrying", RetryCount: retryCount})
		})
	if err != nil {
		msg := userFacingMessage(err)
		rep.report(Status{State: StateFailed, Message: msg, Error: msg})
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	rep.report(Status{State: StateCompleted, Progress: 100, Message: "upload complete"})
	return blobID, nil
}

func (o *Orchestrator) uploadChunked(ctx context.Context, src *Source, rep *reporter) (string, error) {
	fileID, err := src.Fingerprint()
	if err != nil {
		rep.report(Status{State: StateFailed, Message: "failed to fingerprint file", Error: err.Error()})
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	total := countChunks(src.Size, o.cfg.ChunkSize)
	chunks := o.sessions.Load(fileID)
	resumed := len(chunks) == total
	if !resumed {
		chunks = partition(src.Size, o.cfg.ChunkSize)
	}

	sess := &session.Session{
		FileID:    fileID,
		FileName:  src.Name,
		TotalSize: src.Size,
		Chunks:    chunks,
	}
	o.sessions.Save(sess.FileID, sess.Chunks, sess.FileName, sess.TotalSize)

	if resumed {
		slog.Info("resuming upload session",
			slog.String("file_id", fileID),
			slog.Int("completed", session.CompletedChunks(chunks)),
			slog.Int("total", total),
		)
	}
	rep.report(Status{
		State:        StateUploading,
		Progress:     chunkProgress(chunks),
		Message:      fmt.Sprintf("uploading %d chunks", total),
		CurrentChunk: session.CompletedChunks(chunks),
		TotalChunks:  total,
	})

	if err := o.driveChunks(ctx, src, sess, rep); err != nil {
		return "", err
	}

	return o.uploadManifest(ctx, src, sess, rep)
}

// driveChunks uploads pending chunks serially. Isolated terminal failures
// do not stop the pass; three in a row abort it.
func (o *Orchestrator) driveChunks(ctx context.Context, src *Source, sess *session.Session, rep *reporter) error {
	total := len(sess.Chunks)
	consecutive := 0

	for i := range sess.Chunks {
		if o.cancelled.Load() {
			// A chunk that completed after Cancel may have re-persisted
			// the session; drop it again at the checkpoint.
			o.sessions.Clear()
			return ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}

		chunk := &sess.Chunks[i]
		if chunk.Status == session.ChunkCompleted && chunk.BlobID != "" {
			rep.report(Status{
				State:        StateUploading,
				Progress:     chunkProgress(sess.Chunks),
				Message:      fmt.Sprintf("chunk %d/%d already uploaded", i+1, total),
				CurrentChunk: i + 1,
				TotalChunks:  total,
			})
			continue
		}

		data, err := src.ReadRange(chunk.Start, chunk.End)
		if err != nil {
			rep.report(Status{State: StateFailed, Message: "failed to read chunk", Error: err.Error()})
			return fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}

		rep.report(Status{
			State:        StateUploading,
			Progress:     chunkProgress(sess.Chunks),
			Message:      fmt.Sprintf("uploading chunk %d/%d", i+1, total),
			CurrentChunk: i + 1,
			TotalChunks:  total,
		})

		err = o.uploader.Upload(ctx, sess, chunk, data, src.MimeType, func(retryCount int) {
			rep.report(Status{
				State:        StateRetrying,
				Message:      fmt.Sprintf("chunk %d/%d failed, retrying", i+1, total),
				CurrentChunk: i + 1,
				TotalChunks:  total,
				RetryCount:   retryCount,
			})
		})
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrUploadFailed, ctx.Err())
			}

			consecutive++
			slog.Error("chunk failed terminally",
				slog.Int("chunk", i),
				slog.Int("consecutive_failures", consecutive),
				slog.String("error", err.Error()),
			)
			if consecutive >= maxConsecutiveFailures {
				msg := "multiple chunks failed in a row, upload aborted"
				rep.report(Status{State: StateFailed, Message: msg, Error: msg})
				return fmt.Errorf("%w: %w", ErrConsecutiveFailures, err)
			}

			// Keep going: an isolated failure may be a one-off, and the
			// session keeps the chunk for a later resume.
			continue
		}

		consecutive = 0
		rep.report(Status{
			State:        StateUploading,
			Progress:     chunkProgress(sess.Chunks),
			Message:      fmt.Sprintf("completed %d/%d chunks", session.CompletedChunks(sess.Chunks), total),
			CurrentChunk: i + 1,
			TotalChunks:  total,
		})

		if i < total-1 {
			if err := o.cfg.Sleep(ctx, o.cfg.InterChunkDelay); err != nil {
				return fmt.Errorf("%w: %w", ErrUploadFailed, err)
			}
		}
	}

	if failed := total - session.CompletedChunks(sess.Chunks); failed > 0 {
		msg := fmt.Sprintf("%d chunks failed to upload", failed)
		rep.report(Status{State: StateFailed, Message: msg, Error: msg})
		return fmt.Errorf("%w: %d of %d chunks failed", ErrUploadFailed, failed, total)
	}
	return nil
}

func (o *Orchestrator) uploadManifest(ctx context.Context, src *Source, sess *session.Session, rep *reporter) (string, error) {
	rep.report(Status{State: StateUploading, Progress: 85, Message: "preparing manifest"})

	// Let the publisher settle after the chunk burst before one more PUT.
	if err := o.cfg.Sleep(ctx, o.cfg.ManifestSettleDelay); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	manifest, err := BuildManifest(sess.FileID, src, sess.Chunks)
	if err != nil {
		// Session stays in place: a retry resumes from the completed
		// chunks instead of starting over.
		rep.report(Status{State: StateFailed, Message: "chunk set incomplete", Error: err.Error()})
		return "", err
	}

	payload, err := json.Marshal(manifest)
	if err != nil {
		rep.report(Status{State: StateFailed, Message: "failed to encode manifest", Error: err.Error()})
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	rep.report(Status{State: StateUploading, Progress: 90, Message: "uploading manifest"})

	manifestID, err := putWithRetry(ctx, o.store, payload, "application/json",
		walrus.ManifestPolicy(maxManifestAttempts), o.cfg.Sleep,
		func(retryCount int) {
			rep.report(Status{State: StateRetrying, Message: "manifest upload failed, retrying", RetryCount: retryCount})
		})
	if err != nil {
		msg := userFacingMessage(err)
		rep.report(Status{State: StateFailed, Message: msg, Error: msg})
		return "", fmt.Errorf("%w: manifest upload: %w", ErrUploadFailed, err)
	}

	o.sessions.Clear()
	rep.report(Status{State: StateCompleted, Progress: 100, Message: "upload complete"})

	slog.Info("chunked upload complete",
		slog.String("file_id", sess.FileID),
		slog.String("manifest_blob_id", manifestID),
		slog.Int("chunks", len(manifest.Chunks)),
		slog.Int64("total_size", manifest.TotalSize),
	)
	return manifestID, nil
}

func chunkProgress(chunks []session.Chunk) int {
	if len(chunks) == 0 {
		return 0
	}
	return session.CompletedChunks(chunks) * chunkProgressCeiling / len(chunks)
}

// userFacingMessage maps a technical error to the short message surfaced in
// UploadStatus; the full detail goes to logs only.
func userFacingMessage(err error) string {
	switch {
	case walrus.IsRateLimited(err):
		return "the storage service is rate limiting uploads, please try again later"
	case walrus.IsTransient(err):
		return "network is unstable, upload did not complete"
	default:
		return "upload failed"
	}
}
