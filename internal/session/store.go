package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const slotFileName = "upload-session.json"

// Store persists at most one upload session in a fixed file slot. Saving a
// session for a different file overwrites the previous one; running two
// resumable uploads against the same store is a documented scope limit, not
// a supported mode.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore creates a store rooted at dir, creating it if needed. An empty
// dir falls back to SESSION_DIR, then to the user cache directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = os.Getenv("SESSION_DIR")
	}
	if dir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve session directory: %w", err)
		}
		dir = filepath.Join(cacheDir, "walrusio")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	return &Store{
		path: filepath.Join(dir, slotFileName),
		now:  time.Now,
	}, nil
}

// Save writes the session slot. Storage failures are logged and swallowed:
// resumability is best effort and must never abort an upload.
func (s *Store) Save(fileID string, chunks []Chunk, fileName string, totalSize int64) {
	sess := Session{
		FileID:    fileID,
		FileName:  fileName,
		TotalSize: totalSize,
		Chunks:    chunks,
		Timestamp: s.now().UnixMilli(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		slog.Error("failed to serialize upload session",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		slog.Error("failed to save upload session",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}
}

// Load returns the persisted chunks for fileID, or nil when no usable
// session exists. A slot for a different file, an expired slot, or a corrupt
// slot is deleted as a side effect.
func (s *Store) Load(fileID string) []Chunk {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to read upload session",
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		slog.Warn("discarding corrupt upload session",
			slog.String("error", err.Error()),
		)
		s.Clear()
		return nil
	}

	if sess.FileID != fileID || sess.expired(s.now()) {
		s.Clear()
		return nil
	}

	return sess.Chunks
}

// Current returns whatever live session occupies the slot, or nil. Unlike
// Load it does not care which file the session belongs to; the relay uses
// it to tell callers an interrupted upload can be resumed.
func (s *Store) Current() *Session {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.Clear()
		return nil
	}
	if sess.expired(s.now()) {
		s.Clear()
		return nil
	}
	return &sess
}

// Clear removes the session slot unconditionally.
func (s *Store) Clear() {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to clear upload session",
			slog.String("error", err.Error()),
		)
	}
}

// ExpireStale deletes the slot if it is past TTL or unreadable. It reports
// whether a slot was removed; the maintenance scheduler calls it
// periodically so abandoned sessions do not linger for days.
func (s *Store) ExpireStale() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.Clear()
		return true
	}

	if sess.expired(s.now()) {
		slog.Info("expiring stale upload session",
			slog.String("file_id", sess.FileID),
			slog.Int("chunks", len(sess.Chunks)),
		)
		s.Clear()
		return true
	}
	return false
}
