package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Ashtsssssh/DiMITO/pkg/config"
)

// CORS настраивает заголовки cross-origin по конфигурации
func CORS(cfg config.CORSConfig) Middleware {
	allowedHeaders := prepareAllowedHeaders(cfg.AllowedHeaders)
	allowedMethods := strings.Join(cfg.AllowedMethods, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowedOrigin := ""
			for _, o := range cfg.AllowedOrigins {
				if o == "*" {
					allowedOrigin = "*"
					break
				}
				if o == origin {
					allowedOrigin = origin
					break
				}
			}

			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			}
			w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Preflight
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// prepareAllowedHeaders раскрывает wildcard в конкретный список:
// браузеры не включают Authorization при "*"
func prepareAllowedHeaders(headers []string) string {
	for _, h := range headers {
		if h == "*" {
			return "Content-Type, Authorization, Accept, Origin, X-Requested-With, X-Request-Id"
		}
	}
	return strings.Join(headers, ", ")
}
