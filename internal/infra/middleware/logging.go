package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestObserver receives the outcome of every request; the metrics
// package implements it.
type RequestObserver interface {
	ObserveHTTP(method, path string, status int, elapsed time.Duration)
}

// AccessLog logs each request at debug level and reports it to obs when
// obs is non-nil.
func AccessLog(logger *slog.Logger, obs RequestObserver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
			)
			if obs != nil {
				obs.ObserveHTTP(r.Method, r.URL.Path, rec.status, elapsed)
			}
		})
	}
}
