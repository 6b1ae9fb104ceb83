package walrus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errRateLimit = &StatusError{StatusCode: 429}
	errGateway   = &StatusError{StatusCode: 503}
	errNotFound  = &StatusError{StatusCode: 404}
	errBadReq    = &StatusError{StatusCode: 400}
)

func TestUploadPolicy_RateLimitBackoffMonotone(t *testing.T) {
	policy := UploadPolicy(5)

	var prev time.Duration
	for attempt := 1; attempt < 5; attempt++ {
		d := policy(attempt, errRateLimit)

		require.True(t, d.Retry, "attempt %d", attempt)
		assert.GreaterOrEqual(t, d.Delay, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d.Delay, 10*time.Second, "attempt %d", attempt)
		prev = d.Delay
	}
}

func TestUploadPolicy_TransientRetried(t *testing.T) {
	policy := UploadPolicy(3)

	d := policy(1, errGateway)

	assert.True(t, d.Retry)
	assert.Positive(t, d.Delay)
}

func TestUploadPolicy_FatalNotRetried(t *testing.T) {
	policy := UploadPolicy(3)

	assert.False(t, policy(1, errBadReq).Retry)
	assert.False(t, policy(1, fmt.Errorf("%w: {}", ErrMalformedResponse)).Retry)
}

func TestUploadPolicy_BudgetExhausted(t *testing.T) {
	policy := UploadPolicy(3)

	assert.True(t, policy(2, errRateLimit).Retry)
	assert.False(t, policy(3, errRateLimit).Retry)
}

func TestManifestPolicy_CapsAt15s(t *testing.T) {
	policy := ManifestPolicy(10)

	d := policy(9, errRateLimit)

	require.True(t, d.Retry)
	assert.Equal(t, 15*time.Second, d.Delay)
}

func TestFetchPolicy_NotFoundRetried(t *testing.T) {
	policy := FetchPolicy(3)

	d := policy(1, errNotFound)

	assert.True(t, d.Retry)
	assert.Equal(t, 3*time.Second, d.Delay)
}

func TestFetchPolicy_DelayGrowsByHalf(t *testing.T) {
	policy := FetchPolicy(4)

	first := policy(1, errGateway).Delay
	second := policy(2, errGateway).Delay
	third := policy(3, errGateway).Delay

	assert.Equal(t, 3*time.Second, first)
	assert.Equal(t, 4500*time.Millisecond, second)
	assert.Equal(t, 6750*time.Millisecond, third)
}

func TestFetchPolicy_BadRequestFatal(t *testing.T) {
	policy := FetchPolicy(3)

	assert.False(t, policy(1, errBadReq).Retry)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(errRateLimit))
	assert.True(t, IsRateLimited(fmt.Errorf("wrapped: %w", errRateLimit)))
	assert.False(t, IsRateLimited(errGateway))
	assert.False(t, IsRateLimited(errors.New("boom")))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errGateway))
	assert.True(t, IsTransient(&StatusError{StatusCode: 502}))
	assert.True(t, IsTransient(&StatusError{StatusCode: 504}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(&url.Error{Op: "Put", Err: errors.New("connection refused")}))
	assert.True(t, IsTransient(&net.DNSError{IsTimeout: true}))

	assert.False(t, IsTransient(errRateLimit))
	assert.False(t, IsTransient(errNotFound))
	assert.False(t, IsTransient(&StatusError{StatusCode: 500}))
	assert.False(t, IsTransient(ErrMalformedResponse))
}

func TestSleep_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep_ZeroDelay(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
}
