package upload

import (
	"context"
	"net/http"
	"sync"

	"github.com/huahuahua1223/walrusio/internal/crypto"
	"github.com/huahuahua1223/walrusio/internal/walrus"
)

// memStore is an in-memory content-addressed BlobStore. putHook, when set,
// can fail selected calls to script error sequences; call numbers are
// 1-based in arrival order.
type memStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	putCalls int
	putHook  func(call int, data []byte, contentType string) error
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (m *memStore) Put(_ context.Context, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putCalls++
	if m.putHook != nil {
		if err := m.putHook(m.putCalls, data, contentType); err != nil {
			return "", err
		}
	}

	blobID := crypto.HashBytes(data)
	m.blobs[blobID] = append([]byte(nil), data...)
	return blobID, nil
}

func (m *memStore) Get(_ context.Context, blobID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.blobs[blobID]
	if !ok {
		return nil, &walrus.StatusError{StatusCode: http.StatusNotFound}
	}
	return append([]byte(nil), data...), nil
}

func (m *memStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putCalls
}

func (m *memStore) has(blobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[blobID]
	return ok
}
