package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/huahuahua1223/walrusio/internal/logger"
)

// RateLimitConfig caps the relay's per-IP request rates. Uploads fan out
// into many publisher PUTs each, so they get a much tighter budget than
// cached blob reads.
type RateLimitConfig struct {
	UploadLimit  int
	FetchLimit   int
	SessionLimit int
	TimeWindow   time.Duration
}

func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		UploadLimit:  getEnvInt("RATE_LIMIT_UPLOAD", 10),
		FetchLimit:   getEnvInt("RATE_LIMIT_FETCH", 60),
		SessionLimit: getEnvInt("RATE_LIMIT_SESSION", 30),
		TimeWindow:   time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}

var config = LoadRateLimitConfig()

func ReloadConfig() {
	config = LoadRateLimitConfig()
}

func UploadLimiter() func(http.Handler) http.Handler { return createLimiter(config.UploadLimit) }

func FetchLimiter() func(http.Handler) http.Handler { return createLimiter(config.FetchLimit) }

func SessionLimiter() func(http.Handler) http.Handler { return createLimiter(config.SessionLimit) }

func createLimiter(limit int) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		config.TimeWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitExceededHandler(config.TimeWindow)),
	)
}

func rateLimitExceededHandler(retryAfter time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		log.Warn("rate limit exceeded",
			slog.String("ip", r.RemoteAddr),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", retryAfter.String())
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"success":false,"message":"Rate limit exceeded. Please try again later."}`))
	}
}
