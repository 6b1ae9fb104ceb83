// Package blobid canonicalizes Walrus blob identifiers. Identifiers arrive
// from chain data and user input in several spellings: a bare id, an id with
// a leading slash, a multi-segment path, or a full aggregator URL. The store
// API accepts only the bare id.
package blobid

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidIdentifier is returned for identifiers that are empty after
// trimming. It is fatal; callers must not retry.
var ErrInvalidIdentifier = errors.New("invalid blob identifier")

// Normalize reduces a raw identifier to the bare id the aggregator expects.
// It is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidIdentifier)
	}

	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		s = lastSegment(u.Path)
	} else if strings.Contains(s, "/") {
		s = lastSegment(s)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: %q has no id segment", ErrInvalidIdentifier, raw)
	}
	return s, nil
}

func lastSegment(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
