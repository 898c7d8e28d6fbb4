package service

import (
	"context"
	"crypto/subtle"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/passhash"
	"github.com/Ashtsssssh/DiMITO/pkg/telemetry"
)

// AuthService выдача токенов операторам координатора.
// Учётная запись одна и задаётся конфигурацией: координатор не ведёт
// собственную базу пользователей.
type AuthService struct {
	cfg    *config.AuthConfig
	tokens *passhash.JWTManager
}

// NewAuthService создаёт сервис аутентификации
func NewAuthService(cfg *config.AuthConfig) *AuthService {
	return &AuthService{
		cfg: cfg,
		tokens: passhash.NewJWTManager(&passhash.JWTConfig{
			SecretKey:          cfg.JWTSecret,
			AccessTokenExpiry:  cfg.TokenTTL,
			RefreshTokenExpiry: cfg.TokenTTL,
			Issuer:             cfg.Issuer,
		}),
	}
}

// Tokens возвращает менеджер токенов для auth-middleware
func (s *AuthService) Tokens() *passhash.JWTManager {
	return s.tokens
}

// IssueToken проверяет учётные данные оператора и выдаёт JWT
func (s *AuthService) IssueToken(ctx context.Context, username, password string) (string, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "AuthService.IssueToken")
	defer span.End()

	if username == "" || password == "" {
		return "", 0, apperror.New(apperror.CodeBadRequest, "username and password are required")
	}

	if s.cfg.AdminPasswordHash == "" {
		return "", 0, apperror.New(apperror.CodeUnauthenticated, "operator login is not configured")
	}

	if subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.AdminUser)) != 1 {
		telemetry.AddEvent(ctx, "unknown_operator")
		return "", 0, apperror.New(apperror.CodeUnauthenticated, "invalid username or password")
	}

	valid, err := passhash.VerifyPassword(password, s.cfg.AdminPasswordHash)
	if err != nil {
		telemetry.SetError(ctx, err)
		return "", 0, apperror.Wrap(err, apperror.CodeInternal, "failed to verify password")
	}
	if !valid {
		telemetry.AddEvent(ctx, "invalid_password")
		return "", 0, apperror.New(apperror.CodeUnauthenticated, "invalid username or password")
	}

	token, err := s.tokens.GenerateAccessToken(username, username, "admin")
	if err != nil {
		telemetry.SetError(ctx, err)
		return "", 0, apperror.Wrap(err, apperror.CodeInternal, "failed to generate token")
	}

	logger.Log.Info("Operator token issued", "username", username)
	return token, s.tokens.GetAccessTokenExpiry(), nil
}
