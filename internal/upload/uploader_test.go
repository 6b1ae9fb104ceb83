package upload

import (
	"context"
	"testing"
	"time"

	"github.com/huahuahua1223/walrusio/internal/session"
	"github.com/huahuahua1223/walrusio/internal/walrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestSession(chunks []session.Chunk) *session.Session {
	return &session.Session{
		FileID:    "file-test",
		FileName:  "movie.mp4",
		TotalSize: 8,
		Chunks:    chunks,
	}
}

func TestChunkUploader_Success(t *testing.T) {
	store := newMemStore()
	sessions, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	uploader := NewChunkUploader(store, sessions, noSleep)

	sess := newTestSession(partition(8, 4))
	err = uploader.Upload(context.Background(), sess, &sess.Chunks[0], []byte("abcd"), "video/mp4", nil)

	require.NoError(t, err)
	assert.Equal(t, session.ChunkCompleted, sess.Chunks[0].Status)
	assert.NotEmpty(t, sess.Chunks[0].BlobID)
	assert.True(t, store.has(sess.Chunks[0].BlobID))

	// The transition reached durable storage.
	persisted := sessions.Load("file-test")
	require.Len(t, persisted, 2)
	assert.Equal(t, session.ChunkCompleted, persisted[0].Status)
	assert.Equal(t, sess.Chunks[0].BlobID, persisted[0].BlobID)
}

func TestChunkUploader_RetriesRateLimitThenSucceeds(t *testing.T) {
	store := newMemStore()
	store.putHook = func(call int, _ []byte, _ string) error {
		if call <= 2 {
			return &walrus.StatusError{StatusCode: 429}
		}
		return nil
	}
	sessions, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	uploader := NewChunkUploader(store, sessions, noSleep)

	var retries []int
	sess := newTestSession(partition(8, 4))
	err = uploader.Upload(context.Background(), sess, &sess.Chunks[0], []byte("abcd"), "video/mp4",
		func(retryCount int) { retries = append(retries, retryCount) })

	require.NoError(t, err)
	assert.Equal(t, session.ChunkCompleted, sess.Chunks[0].Status)
	assert.Equal(t, 2, sess.Chunks[0].RetryCount)
	assert.Equal(t, []int{1, 2}, retries)
	assert.Equal(t, 3, store.calls())
}

func TestChunkUploader_ExhaustsRetries(t *testing.T) {
	store := newMemStore()
	store.putHook = func(int, []byte, string) error {
		return &walrus.StatusError{StatusCode: 429}
	}
	sessions, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	uploader := NewChunkUploader(store, sessions, noSleep)

	sess := newTestSession(partition(8, 4))
	err = uploader.Upload(context.Background(), sess, &sess.Chunks[0], []byte("abcd"), "video/mp4", nil)

	require.Error(t, err)
	assert.True(t, walrus.IsRateLimited(err))
	assert.Equal(t, session.ChunkFailed, sess.Chunks[0].Status)
	assert.NotEmpty(t, sess.Chunks[0].Error)
	assert.Empty(t, sess.Chunks[0].BlobID)
	assert.Equal(t, maxChunkAttempts, store.calls())

	persisted := sessions.Load("file-test")
	require.Len(t, persisted, 2)
	assert.Equal(t, session.ChunkFailed, persisted[0].Status)
}

func TestChunkUploader_FatalErrorNotRetried(t *testing.T) {
	store := newMemStore()
	store.putHook = func(int, []byte, string) error {
		return &walrus.StatusError{StatusCode: 400, Body: "bad request"}
	}
	sessions, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	uploader := NewChunkUploader(store, sessions, noSleep)

	sess := newTestSession(partition(8, 4))
	err = uploader.Upload(context.Background(), sess, &sess.Chunks[0], []byte("abcd"), "video/mp4", nil)

	require.Error(t, err)
	assert.Equal(t, 1, store.calls())
	assert.Equal(t, session.ChunkFailed, sess.Chunks[0].Status)
}

func TestChunkUploader_SkipsCompletedChunk(t *testing.T) {
	store := newMemStore()
	sessions, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	uploader := NewChunkUploader(store, sessions, noSleep)

	sess := newTestSession(partition(8, 4))
	sess.Chunks[0].Status = session.ChunkCompleted
	sess.Chunks[0].BlobID = "blob-prior"

	err = uploader.Upload(context.Background(), sess, &sess.Chunks[0], []byte("abcd"), "video/mp4", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, store.calls())
	assert.Equal(t, "blob-prior", sess.Chunks[0].BlobID)
}

func TestPutWithRetry_ReturnsLastError(t *testing.T) {
	store := newMemStore()
	store.putHook = func(int, []byte, string) error {
		return &walrus.StatusError{StatusCode: 503}
	}

	_, err := putWithRetry(context.Background(), store, []byte("x"), "text/plain",
		walrus.UploadPolicy(2), noSleep, nil)

	require.Error(t, err)
	assert.True(t, walrus.IsTransient(err))
	assert.Equal(t, 2, store.calls())
}
