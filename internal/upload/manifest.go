package upload

import (
	"fmt"
	"sort"

	"github.com/huahuahua1223/walrusio/internal/session"
)

// Manifest describes a chunked upload: the ordered chunk blob ids plus the
// file metadata a reader needs to reassemble and play the content. It is
// stored as a JSON blob; its blob id is the caller's single handle to the
// whole file. Field names match the wire format readers already expect.
type Manifest struct {
	FileID    string          `json:"fileId"`
	Chunks    []ManifestChunk `json:"chunks"`
	TotalSize int64           `json:"totalSize"`
	FileName  string          `json:"fileName"`
	MimeType  string          `json:"mimeType"`
}

type ManifestChunk struct {
	BlobID string `json:"blobId"`
	Index  int    `json:"index"`
	Size   int64  `json:"size"`
}

// BuildManifest assembles the manifest from a fully completed chunk set,
// sorted by index regardless of completion order. Any chunk not completed
// (or completed without a blob id) is ErrPartialManifest.
func BuildManifest(fileID string, src *Source, chunks []session.Chunk) (*Manifest, error) {
	entries := make([]ManifestChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Status != session.ChunkCompleted || c.BlobID == "" {
			return nil, fmt.Errorf("%w: chunk %d is %s", ErrPartialManifest, c.Index, c.Status)
		}
		entries = append(entries, ManifestChunk{
			BlobID: c.BlobID,
			Index:  c.Index,
			Size:   c.Size,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })

	return &Manifest{
		FileID:    fileID,
		Chunks:    entries,
		TotalSize: src.Size,
		FileName:  src.Name,
		MimeType:  src.MimeType,
	}, nil
}
