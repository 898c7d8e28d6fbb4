package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/ratelimit"
)

// KeyExtractor выделяет ключ лимита из запроса
type KeyExtractor func(r *http.Request) string

// ClientIPKey ключ по IP клиента с учётом X-Forwarded-For
func ClientIPKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ClientIP возвращает адрес клиента
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit ограничивает частоту запросов.
// При отказе backend-а запросы пропускаются: деградация лимитера
// не должна останавливать управление перекрёстками.
func RateLimit(limiter ratelimit.Limiter, extractor KeyExtractor) Middleware {
	if extractor == nil {
		extractor = ClientIPKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := extractor(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Log.Warn("Rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				if info, err := limiter.GetInfo(r.Context(), key); err == nil && info != nil {
					w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
					w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
					if info.RetryAfter > 0 {
						w.Header().Set("Retry-After", strconv.Itoa(int(info.RetryAfter.Seconds())))
					}
				}
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
