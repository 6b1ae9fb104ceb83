// Package content is the read side of the pipeline: it resolves a blob id
// into consumable content, following manifest indirection for chunked media
// and degrading gracefully for structured data, so one broken item never
// breaks a whole list view.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/huahuahua1223/walrusio/internal/blobid"
	"github.com/huahuahua1223/walrusio/internal/upload"
)

// ErrInvalidManifest means the blob decoded as JSON but does not carry a
// usable chunks array.
var ErrInvalidManifest = errors.New("blob is not a valid chunk manifest")

// Fetcher retrieves the raw bytes for one blob id, retry policy included.
// Satisfied by the Walrus client and the MinIO store.
type Fetcher interface {
	Get(ctx context.Context, blobID string) ([]byte, error)
}

// Assembled is a fully reconstructed chunked file.
type Assembled struct {
	Data     []byte
	MimeType string
	FileName string
}

const defaultJSONTimeout = 30 * time.Second

type Reassembler struct {
	fetcher Fetcher

	// Structured content and assembled media are cached separately: a
	// maintenance pass may want to drop heavy media buffers while keeping
	// cheap JSON around.
	contentCache *Cache
	mediaCache   *Cache

	jsonTimeout time.Duration
}

func NewReassembler(fetcher Fetcher) *Reassembler {
	return &Reassembler{
		fetcher:      fetcher,
		contentCache: NewCache(),
		mediaCache:   NewCache(),
		jsonTimeout:  defaultJSONTimeout,
	}
}

// FetchJSON resolves blobID and parses it as JSON. Failures come back as a
// sentinel object with "error" and "message" keys instead of an error:
// callers render a degraded item, they do not crash. The whole operation is
// bounded by an overall deadline independent of per-attempt fetch timeouts.
func (r *Reassembler) FetchJSON(ctx context.Context, blobID string) map[string]any {
	id, err := blobid.Normalize(blobID)
	if err != nil {
		return sentinel("invalid_identifier", err)
	}

	if cached, ok := r.contentCache.Get(id); ok {
		if m, ok := cached.(map[string]any); ok {
			return m
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.jsonTimeout)
	defer cancel()

	data, err := r.fetcher.Get(ctx, id)
	if err != nil {
		slog.Error("content fetch failed",
			slog.String("blob_id", id),
			slog.String("error", err.Error()),
		)
		return sentinel("fetch_failed", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		slog.Warn("blob is not valid JSON",
			slog.String("blob_id", id),
			slog.String("error", err.Error()),
		)
		return sentinel("invalid_json", err)
	}

	r.contentCache.Set(id, parsed)
	return parsed
}

// FetchContent resolves blobID as JSON when possible and falls back to a
// {"text": ...} wrapper for plain text, mirroring what list views expect.
func (r *Reassembler) FetchContent(ctx context.Context, blobID string) map[string]any {
	id, err := blobid.Normalize(blobID)
	if err != nil {
		return sentinel("invalid_identifier", err)
	}

	if cached, ok := r.contentCache.Get(id); ok {
		if m, ok := cached.(map[string]any); ok {
			return m
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.jsonTimeout)
	defer cancel()

	data, err := r.fetcher.Get(ctx, id)
	if err != nil {
		slog.Error("content fetch failed",
			slog.String("blob_id", id),
			slog.String("error", err.Error()),
		)
		return sentinel("fetch_failed", err)
	}

	var parsed map[string]any
	if json.Unmarshal(data, &parsed) != nil {
		parsed = map[string]any{"text": string(data)}
	}

	r.contentCache.Set(id, parsed)
	return parsed
}

// FetchManifestContent resolves a manifest blob and reassembles the file it
// describes: every referenced chunk is fetched and concatenated in
// ascending index order. Reassembly is all-or-nothing; a single failed
// chunk aborts it with an error and nothing is cached.
func (r *Reassembler) FetchManifestContent(ctx context.Context, blobID string) (*Assembled, error) {
	id, err := blobid.Normalize(blobID)
	if err != nil {
		return nil, err
	}

	if cached, ok := r.mediaCache.Get(id); ok {
		if a, ok := cached.(*Assembled); ok {
			return a, nil
		}
	}

	raw, err := r.fetcher.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest %s: %w", id, err)
	}

	var manifest upload.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, id, err)
	}
	if len(manifest.Chunks) == 0 {
		return nil, fmt.Errorf("%w: %s has no chunks", ErrInvalidManifest, id)
	}

	chunks := append([]upload.ManifestChunk(nil), manifest.Chunks...)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	assembled := make([]byte, 0, manifest.TotalSize)
	for _, chunk := range chunks {
		data, err := r.fetcher.Get(ctx, chunk.BlobID)
		if err != nil {
			// Partial media is worse than none; surface the miss.
			return nil, fmt.Errorf("failed to fetch chunk %d of %s: %w", chunk.Index, id, err)
		}
		assembled = append(assembled, data...)
	}

	result := &Assembled{
		Data:     assembled,
		MimeType: manifest.MimeType,
		FileName: manifest.FileName,
	}
	r.mediaCache.Set(id, result)

	slog.Debug("manifest content assembled",
		slog.String("blob_id", id),
		slog.Int("chunks", len(chunks)),
		slog.Int("bytes", len(assembled)),
	)
	return result, nil
}

// EvictIdle drops cached entries untouched for maxIdle from both caches.
func (r *Reassembler) EvictIdle(maxIdle time.Duration) int {
	return r.contentCache.EvictIdle(maxIdle) + r.mediaCache.EvictIdle(maxIdle)
}

// Dispose releases both caches. Called on shutdown.
func (r *Reassembler) Dispose() {
	r.contentCache.Dispose()
	r.mediaCache.Dispose()
}

func sentinel(code string, err error) map[string]any {
	return map[string]any{
		"error":   code,
		"message": err.Error(),
	}
}
