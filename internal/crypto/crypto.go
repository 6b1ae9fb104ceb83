package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func HashReader(r io.Reader) (string, error) {
	hasher := sha256.New()

	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Fingerprint derives the resumable-session key for a file from its content
// hash and size. A content-derived key means renaming a file keeps its
// in-progress session, and two distinct files can never share one.
func Fingerprint(r io.Reader, size int64) (string, error) {
	sum, err := HashReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to hash file content: %w", err)
	}
	return fmt.Sprintf("%s-%d", sum, size), nil
}
