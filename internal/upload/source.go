package upload

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/huahuahua1223/walrusio/internal/crypto"
)

// Source is the file being uploaded: random-access bytes plus the metadata
// that ends up in the manifest.
type Source struct {
	Name     string
	Size     int64
	ModTime  time.Time
	MimeType string

	r io.ReaderAt
}

func NewSource(r io.ReaderAt, size int64, name, mimeType string, modTime time.Time) *Source {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &Source{
		Name:     name,
		Size:     size,
		ModTime:  modTime,
		MimeType: mimeType,
		r:        r,
	}
}

// OpenFile builds a Source from a file on disk, sniffing the mime type from
// the first 512 bytes. The returned closer owns the file handle.
func OpenFile(path string) (*Source, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open source file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat source file: %w", err)
	}

	return NewSource(f, fi.Size(), fi.Name(), sniffMimeType(f, fi.Size()), fi.ModTime()), f.Close, nil
}

func sniffMimeType(r io.ReaderAt, size int64) string {
	n := int64(512)
	if size < n {
		n = size
	}
	if n == 0 {
		return ""
	}

	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return ""
	}
	return http.DetectContentType(buf)
}

// Fingerprint returns the content-derived session key for this source.
func (s *Source) Fingerprint() (string, error) {
	return crypto.Fingerprint(io.NewSectionReader(s.r, 0, s.Size), s.Size)
}

// ReadRange returns the bytes of [start, end).
func (s *Source) ReadRange(start, end int64) ([]byte, error) {
	if start < 0 || end > s.Size || start > end {
		return nil, fmt.Errorf("byte range [%d, %d) outside file of size %d", start, end, s.Size)
	}

	buf := make([]byte, end-start)
	if _, err := io.ReadFull(io.NewSectionReader(s.r, start, end-start), buf); err != nil {
		return nil, fmt.Errorf("failed to read byte range [%d, %d): %w", start, end, err)
	}
	return buf, nil
}

// ReadAll returns the whole file; the small-file path sends it in one PUT.
func (s *Source) ReadAll() ([]byte, error) {
	return s.ReadRange(0, s.Size)
}
