// Package session persists per-file chunk-upload progress so an interrupted
// upload can resume in a later process. Persistence is best effort: a broken
// session slot degrades to a fresh upload, never to a failed one.
package session

import "time"

// ChunkStatus is the lifecycle state of one chunk.
// pending -> uploading -> (completed | failed); failed may re-enter
// uploading until the retry budget is spent.
type ChunkStatus string

const (
	ChunkPending   ChunkStatus = "pending"
	ChunkUploading ChunkStatus = "uploading"
	ChunkCompleted ChunkStatus = "completed"
	ChunkFailed    ChunkStatus = "failed"
)

// Chunk records the upload state of one fixed-size byte range [Start, End)
// of a source file. BlobID is set exactly when Status is ChunkCompleted.
type Chunk struct {
	Index      int         `json:"index"`
	Start      int64       `json:"start"`
	End        int64       `json:"end"`
	Size       int64       `json:"size"`
	Status     ChunkStatus `json:"status"`
	RetryCount int         `json:"retry_count"`
	BlobID     string      `json:"blob_id,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Session is the persisted slot payload. FileName/TotalSize are carried for
// diagnostics only; FileID (a content fingerprint) is the matching key.
type Session struct {
	FileID    string  `json:"file_id"`
	FileName  string  `json:"file_name,omitempty"`
	TotalSize int64   `json:"total_size,omitempty"`
	Chunks    []Chunk `json:"chunks"`
	Timestamp int64   `json:"timestamp"`
}

// TTL bounds how long a persisted session stays resumable.
const TTL = 24 * time.Hour

func (s *Session) expired(now time.Time) bool {
	return now.Sub(time.UnixMilli(s.Timestamp)) > TTL
}

// CompletedChunks counts chunks that finished uploading.
func CompletedChunks(chunks []Chunk) int {
	n := 0
	for _, c := range chunks {
		if c.Status == ChunkCompleted {
			n++
		}
	}
	return n
}
