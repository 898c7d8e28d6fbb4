package middleware

import (
	"net/http"
	"strings"

	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/passhash"
)

// TokenValidator проверяет токен и возвращает claims оператора
type TokenValidator interface {
	ValidateToken(token string) (*passhash.Claims, error)
}

// AuthConfig конфигурация auth middleware
type AuthConfig struct {
	Validator TokenValidator
	// Protected префиксы путей, требующие авторизации;
	// остальные запросы проходят свободно
	Protected []string
}

// Auth проверяет Bearer токен на защищённых путях.
// Claims авторизованного оператора кладутся в контекст.
func Auth(cfg *AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || cfg.Validator == nil || !isProtected(cfg.Protected, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := extractBearer(r)
			if !ok {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}

			claims, err := cfg.Validator.ValidateToken(token)
			if err != nil {
				logger.Log.Warn("Token validation failed",
					"path", r.URL.Path,
					"error", err,
				)
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func isProtected(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func extractBearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
