package server

import (
	"log/slog"
	"net/http"
	"time"
)

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 100 * time.Millisecond

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLogging logs all HTTP requests with timing. Slow requests
// (>100ms) are logged at WARN level. WebSocket upgrades are logged on
// entry only, since the handler blocks for the connection lifetime.
func withRequestLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			logger.Debug("websocket request", "remote", r.RemoteAddr)
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration_ms", duration.Milliseconds(),
		}
		if duration > slowRequestThreshold {
			logger.Warn("slow request", attrs...)
		} else {
			logger.Debug("request completed", attrs...)
		}
	})
}
