package server

import (
	"log/slog"
	"net/http"
	"time"
)

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 5 * time.Second

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware returns middleware that logs all requests with timing.
// Slow requests are logged at WARN level. Websocket upgrades are logged on
// entry only since they hold the connection open.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				logger.Debug("websocket attach", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", duration.Milliseconds(),
			}

			switch {
			case rec.status >= http.StatusInternalServerError:
				logger.Error("request failed", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
		})
	}
}
