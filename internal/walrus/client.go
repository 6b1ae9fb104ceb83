// Package walrus talks to the Walrus blob store over HTTP: raw PUTs against
// the publisher and retried GETs against the aggregator. Retry policy for
// writes lives with the callers (the upload engine persists progress between
// attempts); retrieval owns its whole retry loop.
package walrus

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/huahuahua1223/walrusio/internal/blobid"
)

const (
	DefaultPublisherURL  = "https://publisher.testnet.walrus.atalma.io/v1/blobs"
	DefaultAggregatorURL = "https://aggregator.testnet.walrus.atalma.io/v1/blobs"

	defaultPutTimeout      = 60 * time.Second
	defaultFetchTimeout    = 15 * time.Second
	defaultFetchTimeoutCap = 45 * time.Second
	defaultFetchAttempts   = 3
)

type Config struct {
	PublisherURL  string
	AggregatorURL string

	PutTimeout time.Duration

	// Per-attempt retrieval timeout, grown 1.5x per retry up to the cap.
	FetchTimeout    time.Duration
	FetchTimeoutCap time.Duration
	FetchAttempts   int

	Sleep SleepFunc
}

// LoadConfig reads PUBLISHER_URL and AGGREGATOR_URL from the environment,
// falling back to the public testnet endpoints.
func LoadConfig() Config {
	cfg := Config{
		PublisherURL:  os.Getenv("PUBLISHER_URL"),
		AggregatorURL: os.Getenv("AGGREGATOR_URL"),
	}
	if cfg.PublisherURL == "" {
		cfg.PublisherURL = DefaultPublisherURL
	}
	if cfg.AggregatorURL == "" {
		cfg.AggregatorURL = DefaultAggregatorURL
	}
	return cfg
}

type Client struct {
	http        *resty.Client
	cfg         Config
	fetchPolicy RetryPolicy
}

func NewClient(cfg Config) *Client {
	if cfg.PublisherURL == "" {
		cfg.PublisherURL = DefaultPublisherURL
	}
	if cfg.AggregatorURL == "" {
		cfg.AggregatorURL = DefaultAggregatorURL
	}
	if cfg.PutTimeout == 0 {
		cfg.PutTimeout = defaultPutTimeout
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.FetchTimeoutCap == 0 {
		cfg.FetchTimeoutCap = defaultFetchTimeoutCap
	}
	if cfg.FetchAttempts == 0 {
		cfg.FetchAttempts = defaultFetchAttempts
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}

	return &Client{
		http:        resty.New(),
		cfg:         cfg,
		fetchPolicy: FetchPolicy(cfg.FetchAttempts),
	}
}

// Put sends one PUT of data to the publisher and decodes the returned blob
// id. Exactly one attempt: the upload engine drives retries so it can
// persist chunk state between them.
func (c *Client) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PutTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Put(c.cfg.PublisherURL)
	if err != nil {
		return "", fmt.Errorf("publisher request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode(), Body: bodySnippet(resp.Body())}
	}

	result, err := DecodeStoreResponse(resp.Body())
	if err != nil {
		return "", err
	}

	slog.Debug("blob stored",
		slog.String("blob_id", result.BlobID),
		slog.Int("size", len(data)),
		slog.Bool("already_certified", result.Kind == ResultAlreadyCertified),
	)
	return result.BlobID, nil
}

// Get fetches the raw bytes for blobID from the aggregator, normalizing the
// id first and retrying per FetchPolicy with a per-attempt timeout that
// grows 1.5x each retry. Exhaustion returns ErrFetchFailed wrapping the
// last cause.
func (c *Client) Get(ctx context.Context, blobID string) ([]byte, error) {
	id, err := blobid.Normalize(blobID)
	if err != nil {
		return nil, err
	}

	timeout := c.cfg.FetchTimeout
	var lastErr error

	for attempt := 1; ; attempt++ {
		data, err := c.getOnce(ctx, id, timeout)
		if err == nil {
			return data, nil
		}
		lastErr = err

		slog.Warn("blob fetch attempt failed",
			slog.String("blob_id", id),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		d := c.fetchPolicy(attempt, err)
		if !d.Retry {
			break
		}
		if err := c.cfg.Sleep(ctx, d.Delay); err != nil {
			return nil, fmt.Errorf("%w: blob %s: %w", ErrFetchFailed, id, err)
		}

		timeout = timeout * 3 / 2
		if timeout > c.cfg.FetchTimeoutCap {
			timeout = c.cfg.FetchTimeoutCap
		}
	}

	return nil, fmt.Errorf("%w: blob %s: %w", ErrFetchFailed, id, lastErr)
}

func (c *Client) getOnce(ctx context.Context, id string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.cfg.AggregatorURL + "/" + id)
	if err != nil {
		return nil, fmt.Errorf("aggregator request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: bodySnippet(resp.Body())}
	}
	return resp.Body(), nil
}
