package logger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// statusWriter records the status code and byte count a handler produced.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.bytes += n
	return n, err
}

// RequestID tags every request with an X-Request-ID (honoring one supplied
// by the caller) and plants a logger carrying it into the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := WithRequestID(r.Context(), requestID)
		ctx = WithLogger(ctx, slog.Default().With(slog.String("request_id", requestID)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs one line per request with method, path, status,
// duration and bytes served. Uploads and blob downloads can run long, so
// the line is emitted after completion rather than on arrival.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		level := slog.LevelInfo
		if sw.status >= http.StatusInternalServerError {
			level = slog.LevelError
		} else if sw.status >= http.StatusBadRequest {
			level = slog.LevelWarn
		}

		log := FromContext(r.Context())
		log.Log(r.Context(), level, "request completed",
			slog.String("http.method", r.Method),
			slog.String("http.path", r.URL.Path),
			slog.Int("http.status", sw.status),
			slog.Int64("http.request_bytes", r.ContentLength),
			slog.Int("http.response_bytes", sw.bytes),
			slog.Int64("http.duration_ms", time.Since(start).Milliseconds()),
			slog.String("http.remote_addr", r.RemoteAddr),
		)
	})
}
