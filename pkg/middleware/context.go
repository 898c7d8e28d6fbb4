package middleware

import (
	"context"

	"github.com/Ashtsssssh/DiMITO/pkg/passhash"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	claimsKey    contextKey = "claims"
)

// GetRequestID извлекает request_id из контекста
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID добавляет request_id в контекст
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetClaims извлекает claims авторизованного оператора
func GetClaims(ctx context.Context) *passhash.Claims {
	if v, ok := ctx.Value(claimsKey).(*passhash.Claims); ok {
		return v
	}
	return nil
}

// WithClaims добавляет claims в контекст
func WithClaims(ctx context.Context, claims *passhash.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}
