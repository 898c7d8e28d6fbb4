package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/metrics"
)

// Metrics записывает счётчики и гистограммы HTTP запросов.
// pathLabel нормализует путь, чтобы не раздувать кардинальность
// метрик идентификаторами узлов и рёбер.
func Metrics(pathLabel func(r *http.Request) string) Middleware {
	if pathLabel == nil {
		pathLabel = func(r *http.Request) string { return r.URL.Path }
	}

	var (
		trackerOnce sync.Once
		tracker     *metrics.RequestTracker
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := metrics.Get()
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			trackerOnce.Do(func() {
				tracker = metrics.NewRequestTracker(m.HTTPRequestsInFlight)
			})

			path := pathLabel(r)
			tracker.Start(path)
			defer tracker.End(path)

			start := time.Now()
			sw := wrapWriter(w)

			next.ServeHTTP(sw, r)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			m.RecordHTTPRequest(r.Method, path, strconv.Itoa(status), time.Since(start))
		})
	}
}
