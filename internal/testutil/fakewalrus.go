// Package testutil provides shared test infrastructure: an in-process fake
// of the Walrus HTTP endpoints and a containerized MinIO for storage
// integration tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huahuahua1223/walrusio/internal/crypto"
	"github.com/huahuahua1223/walrusio/internal/walrus"
)

// FakeWalrus stands in for a publisher/aggregator pair. Blob ids are the
// sha256 of the content; a repeated PUT of the same bytes answers with the
// already-certified shape, just like the real network.
type FakeWalrus struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	putCalls int

	// RejectPuts makes the first N PUTs answer 429 before behaving again.
	RejectPuts int

	publisher  *httptest.Server
	aggregator *httptest.Server
}

func NewFakeWalrus(t *testing.T) *FakeWalrus {
	t.Helper()

	f := &FakeWalrus{blobs: make(map[string][]byte)}
	f.publisher = httptest.NewServer(http.HandlerFunc(f.handlePut))
	f.aggregator = httptest.NewServer(http.HandlerFunc(f.handleGet))
	t.Cleanup(f.publisher.Close)
	t.Cleanup(f.aggregator.Close)
	return f
}

// Config returns a client config pointing at the fake, with sleeping
// disabled so retry paths run instantly.
func (f *FakeWalrus) Config() walrus.Config {
	return walrus.Config{
		PublisherURL:  f.publisher.URL + "/v1/blobs",
		AggregatorURL: f.aggregator.URL + "/v1/blobs",
		Sleep:         func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}
}

// PutCalls reports how many PUTs the publisher has seen.
func (f *FakeWalrus) PutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putCalls
}

// Has reports whether a blob with exactly data is stored.
func (f *FakeWalrus) Has(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[crypto.HashBytes(data)]
	return ok
}

func (f *FakeWalrus) handlePut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.putCalls++
	if f.RejectPuts > 0 {
		f.RejectPuts--
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	id := crypto.HashBytes(data)
	_, seen := f.blobs[id]
	f.blobs[id] = data

	w.Header().Set("Content-Type", "application/json")
	if seen {
		fmt.Fprintf(w, `{"alreadyCertified":{"blobId":%q,"endEpoch":100}}`, id)
		return
	}
	fmt.Fprintf(w, `{"newlyCreated":{"blobObject":{"id":"0xobj","blobId":%q}}}`, id)
}

func (f *FakeWalrus) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	data, ok := f.blobs[id]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write(data)
}
