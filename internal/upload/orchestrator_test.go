package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/huahuahua1223/walrusio/internal/session"
	"github.com/huahuahua1223/walrusio/internal/walrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, store *memStore) (*Orchestrator, *session.Store) {
	t.Helper()

	sessions, err := session.NewStore(t.TempDir())
	require.NoError(t, err)

	orch := NewOrchestrator(store, sessions, Config{
		ChunkSize:      4,
		SmallFileLimit: 2,
		Sleep:          noSleep,
	})
	return orch, sessions
}

func fetchManifest(t *testing.T, store *memStore, blobID string) Manifest {
	t.Helper()

	data, err := store.Get(context.Background(), blobID)
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestUploadFile_SmallFileShortcut(t *testing.T) {
	store := newMemStore()
	orch, _ := newTestOrchestrator(t, store)
	src := bytesSource([]byte("ok"), "tiny.txt", "text/plain")

	blobID, err := orch.UploadFile(context.Background(), src, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, store.calls(), "small files take exactly one PUT")

	// The id resolves to the raw content, not a manifest-shaped object.
	data, err := store.Get(context.Background(), blobID)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	var m Manifest
	if json.Unmarshal(data, &m) == nil {
		assert.Empty(t, m.Chunks, "no manifest may exist for the small-file path")
	}
}

func TestUploadFile_ChunkedManifestCompleteness(t *testing.T) {
	store := newMemStore()
	orch, sessions := newTestOrchestrator(t, store)
	content := []byte("0123456789") // 3 chunks of size 4, 4, 2
	src := bytesSource(content, "movie.mp4", "video/mp4")

	blobID, err := orch.UploadFile(context.Background(), src, nil, nil)
	require.NoError(t, err)

	m := fetchManifest(t, store, blobID)
	require.Len(t, m.Chunks, 3)

	var total int64
	for i, c := range m.Chunks {
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.BlobID)
		total += c.Size
	}
	assert.Equal(t, src.Size, total)
	assert.Equal(t, src.Size, m.TotalSize)
	assert.Equal(t, "movie.mp4", m.FileName)
	assert.Equal(t, "video/mp4", m.MimeType)

	// Session is cleared once the manifest is durable.
	fileID, err := src.Fingerprint()
	require.NoError(t, err)
	assert.Nil(t, sessions.Load(fileID))
}

func TestUploadFile_RoundTripReconstruction(t *testing.T) {
	store := newMemStore()
	orch, _ := newTestOrchestrator(t, store)
	content := []byte("the quick brown fox jumps over the lazy dog")
	src := bytesSource(content, "movie.mp4", "video/mp4")

	blobID, err := orch.UploadFile(context.Background(), src, nil, nil)
	require.NoError(t, err)

	m := fetchManifest(t, store, blobID)
	var rebuilt bytes.Buffer
	for _, c := range m.Chunks {
		data, err := store.Get(context.Background(), c.BlobID)
		require.NoError(t, err)
		rebuilt.Write(data)
	}

	assert.Equal(t, content, rebuilt.Bytes())
}

func TestUploadFile_ResumeSkipsCompletedChunks(t *testing.T) {
	store := newMemStore()
	orch, sessions := newTestOrchestrator(t, store)
	content := []byte("0123456789")
	src := bytesSource(content, "movie.mp4", "video/mp4")
	fileID, err := src.Fingerprint()
	require.NoError(t, err)

	// Simulate a prior run that finished chunk 0 only.
	priorBlobID, err := store.Put(context.Background(), []byte("0123"), "video/mp4")
	require.NoError(t, err)
	chunks := partition(10, 4)
	chunks[0].Status = session.ChunkCompleted
	chunks[0].BlobID = priorBlobID
	sessions.Save(fileID, chunks, "movie.mp4", 10)
	store.putCalls = 0

	var firstChunkData = []byte("0123")
	store.putHook = func(_ int, data []byte, _ string) error {
		assert.False(t, bytes.Equal(data, firstChunkData), "completed chunk must not be re-uploaded")
		return nil
	}

	blobID, err := orch.UploadFile(context.Background(), src, nil, nil)
	require.NoError(t, err)

	// 2 remaining chunks + 1 manifest.
	assert.Equal(t, 3, store.calls())

	m := fetchManifest(t, store, blobID)
	require.Len(t, m.Chunks, 3)
	assert.Equal(t, priorBlobID, m.Chunks[0].BlobID)
}

func TestUploadFile_StaleSessionIgnoredOnChunkCountMismatch(t *testing.T) {
	store := newMemStore()
	orch, sessions := newTestOrchestrator(t, store)
	content := []byte("0123456789")
	src := bytesSource(content, "movie.mp4", "video/mp4")
	fileID, err := src.Fingerprint()
	require.NoError(t, err)

	// A session persisted with a different chunk geometry is unusable.
	sessions.Save(fileID, partition(10, 2), "movie.mp4", 10)

	blobID, err := orch.UploadFile(context.Background(), src, nil, nil)
	require.NoError(t, err)

	m := fetchManifest(t, store, blobID)
	assert.Len(t, m.Chunks, 3)
}

func TestUploadFile_ConsecutiveFailureAbort(t *testing.T) {
	store := newMemStore()
	orch, sessions := newTestOrchestrator(t, store)
	// 5 chunks; every PUT fails fatally so each chunk dies on its first try.
	content := []byte("01234567890123456789")
	src := bytesSource(content, "movie.mp4", "video/mp4")

	store.putHook = func(int, []byte, string) error {
		return &walrus.StatusError{StatusCode: 400, Body: "rejected"}
	}

	_, err := orch.UploadFile(context.Background(), src, nil, nil)

	require.ErrorIs(t, err, ErrConsecutiveFailures)
	assert.Equal(t, 3, store.calls(), "remaining chunks must not be attempted")

	// The session survives the abort so a later retry can resume.
	fileID, ferr := src.Fingerprint()
	require.NoError(t, ferr)
	assert.NotNil(t, sessions.Load(fileID))
}

func TestUploadFile_IsolatedFailureContinues(t *testing.T) {
	store := newMemStore()
	orch, sessions := newTestOrchestrator(t, store)
	content := []byte("0123456789")
	src := bytesSource(content, "movie.mp4", "video/mp4")

	// Only the middle chunk fails; its terminal failure must not stop the
	// other chunks, but the overall upload still errors.
	store.putHook = func(_ int, data []byte, _ string) error {
		if bytes.Equal(data, []byte("4567")) {
			return &walrus.StatusError{StatusCode: 400, Body: "rejected"}
		}
		return nil
	}

	_, err := orch.UploadFile(context.Background(), src, nil, nil)

	require.ErrorIs(t, err, ErrUploadFailed)

	fileID, ferr := src.Fingerprint()
	require.NoError(t, ferr)
	persisted := sessions.Load(fileID)
	require.Len(t, persisted, 3)
	assert.Equal(t, session.ChunkCompleted, persisted[0].Status)
	assert.Equal(t, session.ChunkFailed, persisted[1].Status)
	assert.Equal(t, session.ChunkCompleted, persisted[2].Status)
}

func TestUploadFile_ProgressMonotonicallyNonDecreasing(t *testing.T) {
	store := newMemStore()
	orch, _ := newTestOrchestrator(t, store)
	src := bytesSource([]byte("0123456789abcdef"), "movie.mp4", "video/mp4")

	var progress []int
	var statuses []Status
	_, err := orch.UploadFile(context.Background(), src,
		func(p int) { progress = append(progress, p) },
		func(s Status) { statuses = append(statuses, s) })
	require.NoError(t, err)

	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.Equal(t, StateCompleted, statuses[len(statuses)-1].State)
}

func TestUploadFile_ManifestUploadedLast(t *testing.T) {
	store := newMemStore()
	orch, _ := newTestOrchestrator(t, store)
	src := bytesSource([]byte("0123456789"), "movie.mp4", "video/mp4")

	var sawManifest bool
	store.putHook = func(_ int, _ []byte, contentType string) error {
		if contentType == "application/json" {
			sawManifest = true
		} else {
			assert.False(t, sawManifest, "no chunk may be uploaded after the manifest")
		}
		return nil
	}

	_, err := orch.UploadFile(context.Background(), src, nil, nil)

	require.NoError(t, err)
	assert.True(t, sawManifest)
}

func TestUploadFile_ManifestRetryExhaustionKeepsSession(t *testing.T) {
	store := newMemStore()
	orch, sessions := newTestOrchestrator(t, store)
	src := bytesSource([]byte("0123456789"), "movie.mp4", "video/mp4")

	store.putHook = func(_ int, _ []byte, contentType string) error {
		if contentType == "application/json" {
			return &walrus.StatusError{StatusCode: 429}
		}
		return nil
	}

	_, err := orch.UploadFile(context.Background(), src, nil, nil)

	require.ErrorIs(t, err, ErrUploadFailed)

	// All chunks are done; a retry should only redo the manifest.
	fileID, ferr := src.Fingerprint()
	require.NoError(t, ferr)
	persisted := sessions.Load(fileID)
	require.Len(t, persisted, 3)
	assert.Equal(t, 3, session.CompletedChunks(persisted))
}

func TestCancel_StopsAtNextCheckpoint(t *testing.T) {
	store := newMemStore()
	orch, sessions := newTestOrchestrator(t, store)
	src := bytesSource([]byte("0123456789"), "movie.mp4", "video/mp4")

	store.putHook = func(call int, _ []byte, _ string) error {
		if call == 1 {
			orch.Cancel()
		}
		return nil
	}

	_, err := orch.UploadFile(context.Background(), src, nil, nil)

	require.ErrorIs(t, err, ErrCancelled)
	fileID, ferr := src.Fingerprint()
	require.NoError(t, ferr)
	assert.Nil(t, sessions.Load(fileID))
}

func TestUploadFile_RateLimitSurfacesFriendlyStatus(t *testing.T) {
	store := newMemStore()
	orch, _ := newTestOrchestrator(t, store)
	src := bytesSource([]byte("x"), "tiny.txt", "text/plain")

	store.putHook = func(int, []byte, string) error {
		return &walrus.StatusError{StatusCode: 429}
	}

	var last Status
	_, err := orch.UploadFile(context.Background(), src, nil, func(s Status) { last = s })

	require.ErrorIs(t, err, ErrUploadFailed)
	assert.Equal(t, StateFailed, last.State)
	assert.Contains(t, last.Message, "rate limiting")
}
