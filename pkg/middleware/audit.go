package middleware

import (
	"net/http"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/audit"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// AuditConfig конфигурация audit middleware
type AuditConfig struct {
	ServiceName  string
	Logger       audit.Logger
	ExcludePaths map[string]bool
}

// Audit пишет запись аудита по завершении запроса.
// Методы чтения не аудируются: интерес представляют мутации
// топологии, метрик и таблицы маршрутизации.
func Audit(cfg *AuditConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || cfg.Logger == nil || cfg.ExcludePaths[r.URL.Path] || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := wrapWriter(w)

			next.ServeHTTP(sw, r)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}

			outcome := audit.OutcomeSuccess
			if status >= http.StatusBadRequest {
				outcome = audit.OutcomeFailure
			}

			builder := audit.NewEntry().
				Service(cfg.ServiceName).
				Method(r.Method + " " + r.URL.Path).
				Action(actionFor(r.Method)).
				Outcome(outcome).
				Client(ClientIP(r), r.UserAgent()).
				RequestID(GetRequestID(r.Context())).
				Duration(time.Since(start))

			if claims := GetClaims(r.Context()); claims != nil {
				builder = builder.User(claims.UserID, claims.Username)
			}
			if outcome == audit.OutcomeFailure {
				builder = builder.Meta("status", status)
			}

			if err := cfg.Logger.Log(r.Context(), builder.Build()); err != nil {
				logger.Log.Warn("Failed to write audit entry", "error", err)
			}
		})
	}
}

func actionFor(method string) audit.Action {
	switch method {
	case http.MethodPost:
		return audit.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return audit.ActionUpdate
	case http.MethodDelete:
		return audit.ActionDelete
	default:
		return audit.ActionRead
	}
}
