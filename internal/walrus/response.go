package walrus

import (
	"encoding/json"
	"fmt"
)

// StoreResultKind tags the two success shapes the publisher can answer with.
type StoreResultKind int

const (
	ResultMalformed StoreResultKind = iota
	ResultAlreadyCertified
	ResultNewlyCreated
)

// StoreResult is the decoded publisher answer for one PUT.
type StoreResult struct {
	Kind   StoreResultKind
	BlobID string
}

// storeResponse mirrors the publisher wire format. Only the blob id is
// load-bearing; the certification metadata is ignored.
type storeResponse struct {
	AlreadyCertified *struct {
		BlobID string `json:"blobId"`
	} `json:"alreadyCertified"`
	NewlyCreated *struct {
		BlobObject struct {
			BlobID string `json:"blobId"`
			Size   int64  `json:"size"`
		} `json:"blobObject"`
	} `json:"newlyCreated"`
}

// DecodeStoreResponse extracts the blob id from a publisher response body.
// A body carrying neither shape decodes to ErrMalformedResponse.
func DecodeStoreResponse(body []byte) (StoreResult, error) {
	var resp storeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return StoreResult{}, fmt.Errorf("%w: %s", ErrMalformedResponse, bodySnippet(body))
	}

	switch {
	case resp.AlreadyCertified != nil && resp.AlreadyCertified.BlobID != "":
		return StoreResult{Kind: ResultAlreadyCertified, BlobID: resp.AlreadyCertified.BlobID}, nil
	case resp.NewlyCreated != nil && resp.NewlyCreated.BlobObject.BlobID != "":
		return StoreResult{Kind: ResultNewlyCreated, BlobID: resp.NewlyCreated.BlobObject.BlobID}, nil
	default:
		return StoreResult{}, fmt.Errorf("%w: no blob id in %s", ErrMalformedResponse, bodySnippet(body))
	}
}
