package middleware

import (
	"net/http"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// Logging логирует завершённые запросы
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrapWriter(w)

			next.ServeHTTP(sw, r)

			duration := time.Since(start)
			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}

			logFields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", duration.Milliseconds(),
				"bytes", sw.bytes,
			}
			if id := GetRequestID(r.Context()); id != "" {
				logFields = append(logFields, "request_id", id)
			}

			if status >= http.StatusInternalServerError {
				logger.Log.Error("Request failed", logFields...)
			} else {
				logger.Log.Info("Request completed", logFields...)
			}
		})
	}
}
