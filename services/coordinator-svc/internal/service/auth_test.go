package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/passhash"
)

func newAuthService(t *testing.T, password string) *AuthService {
	t.Helper()

	hash, err := passhash.HashPassword(password)
	require.NoError(t, err)

	return NewAuthService(&config.AuthConfig{
		Enabled:           true,
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
		Issuer:            "dimito",
		AdminUser:         "admin",
		AdminPasswordHash: hash,
	})
}

func TestAuthService_IssueToken(t *testing.T) {
	svc := newAuthService(t, "correct horse")

	token, expiresIn, err := svc.IssueToken(context.Background(), "admin", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), expiresIn)

	claims, err := svc.Tokens().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
}

func TestAuthService_RejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t, "correct horse")

	tests := []struct {
		name     string
		username string
		password string
		code     apperror.ErrorCode
	}{
		{"wrong password", "admin", "battery staple", apperror.CodeUnauthenticated},
		{"unknown user", "root", "correct horse", apperror.CodeUnauthenticated},
		{"empty password", "admin", "", apperror.CodeBadRequest},
		{"empty username", "", "correct horse", apperror.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.IssueToken(context.Background(), tt.username, tt.password)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, tt.code))
		})
	}
}

func TestAuthService_UnconfiguredLogin(t *testing.T) {
	svc := NewAuthService(&config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		AdminUser: "admin",
	})

	_, _, err := svc.IssueToken(context.Background(), "admin", "anything")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeUnauthenticated))
}
