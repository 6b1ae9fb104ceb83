package types

import "time"

// UploadResponse is returned once a file is durably stored. BlobID is the
// retrieval handle: the manifest id for chunked files, the content id for
// small ones.
type UploadResponse struct {
	BlobID     string    `json:"blob_id"`
	FileName   string    `json:"file_name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	Chunked    bool      `json:"chunked"`
	UploadedAt time.Time `json:"uploaded_at"`
	URL        string    `json:"url"`
}

// SessionResponse describes the persisted progress of an interrupted
// upload, if any.
type SessionResponse struct {
	FileID          string `json:"file_id"`
	FileName        string `json:"file_name"`
	TotalSize       int64  `json:"total_size"`
	TotalChunks     int    `json:"total_chunks"`
	CompletedChunks int    `json:"completed_chunks"`
}
