package walrus

import (
	"context"
	"math"
	"time"
)

// Decision is a retry policy verdict for one failed attempt.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// RetryPolicy maps (attempt number, error) to a verdict. attempt is 1-based
// and counts attempts already made. Policies are pure so they can be tested
// without timers or network.
type RetryPolicy func(attempt int, err error) Decision

// SleepFunc suspends for d or until ctx is done. Injected so tests run
// without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func backoff(base time.Duration, factor float64, attempt int, cap time.Duration) time.Duration {
	d := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	if d > cap {
		return cap
	}
	return d
}

// UploadPolicy governs chunk and small-file PUTs: up to maxAttempts total,
// retrying rate limits and transient network failures with a doubling delay
// capped at 10s. Any other failure is terminal for the chunk.
func UploadPolicy(maxAttempts int) RetryPolicy {
	return func(attempt int, err error) Decision {
		if attempt >= maxAttempts {
			return Decision{}
		}
		if IsRateLimited(err) || IsTransient(err) {
			// attempt starts the doubling at 2s, matching the 1s base.
			return Decision{Retry: true, Delay: backoff(time.Second, 2, attempt+1, 10*time.Second)}
		}
		return Decision{}
	}
}

// ManifestPolicy governs the final metadata PUT. Same shape as UploadPolicy
// with a slower base and higher cap: by the time the manifest goes up the
// publisher has just absorbed every chunk, so rate limiting is likely.
func ManifestPolicy(maxAttempts int) RetryPolicy {
	return func(attempt int, err error) Decision {
		if attempt >= maxAttempts {
			return Decision{}
		}
		if IsRateLimited(err) || IsTransient(err) {
			return Decision{Retry: true, Delay: backoff(2*time.Second, 2, attempt+1, 15*time.Second)}
		}
		return Decision{}
	}
}

// FetchPolicy governs aggregator GETs. 404 is retryable here: a blob that
// was just written may not be visible on every aggregator node yet.
func FetchPolicy(maxAttempts int) RetryPolicy {
	return func(attempt int, err error) Decision {
		if attempt >= maxAttempts {
			return Decision{}
		}
		if IsRateLimited(err) || IsTransient(err) || IsNotFound(err) {
			return Decision{Retry: true, Delay: backoff(3*time.Second, 1.5, attempt, 15*time.Second)}
		}
		return Decision{}
	}
}
