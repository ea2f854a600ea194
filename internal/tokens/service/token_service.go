package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is not active")
)

// CredentialsError несет сообщение апстрима для detail ответа 401.
type CredentialsError struct {
	Message string
}

func (e *CredentialsError) Error() string { return e.Message }

func (e *CredentialsError) Is(target error) bool { return target == ErrInvalidCredentials }

// IssueMethod — способ выдачи токена (метка для метрик и логов).
type IssueMethod string

const (
	MethodCredentials IssueMethod = "credentials"
	MethodOAuth       IssueMethod = "oauth"
	MethodUserID      IssueMethod = "user_id"
)

// defaultScopes выдаются, если запись пользователя не содержит scopes.
var defaultScopes = []string{"read"}

// IdentityProvider описывает, что нам нужно от клиента сервиса пользователей.
type IdentityProvider interface {
	ValidateCredentials(ctx context.Context, username, password string) domain.ValidationResult
	GetUserByID(ctx context.Context, id string) (*domain.UserRecord, bool)
}

// TokenIssuer — выпуск токенов (реализует auth.Codec).
type TokenIssuer interface {
	Issue(subject string, fields domain.UserFields, ttl time.Duration) (string, error)
	TTL() time.Duration
}

type TokenService struct {
	identity IdentityProvider
	issuer   TokenIssuer
	metrics  *infra.Metrics
	logger   *zap.Logger
}

func NewTokenService(identity IdentityProvider, issuer TokenIssuer, metrics *infra.Metrics, logger *zap.Logger) *TokenService {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &TokenService{
		identity: identity,
		issuer:   issuer,
		metrics:  metrics,
		logger:   logger.Named("token-service"),
	}
}

// IssueForCredentials: логин/пароль -> апстрим -> токен.
func (s *TokenService) IssueForCredentials(ctx context.Context, method IssueMethod, creds domain.Credentials) (*domain.TokenResponse, error) {
	// 1. Аутентификация (Источник правды — сервис пользователей)
	result := s.identity.ValidateCredentials(ctx, creds.Username, creds.Password)
	if !result.Valid {
		s.metrics.TokensIssued.WithLabelValues(string(method), "denied").Inc()
		s.logger.Info("credentials rejected", zap.String("method", string(method)), zap.String("reason", result.Message))

		msg := result.Message
		if msg == "" {
			msg = "Invalid credentials"
		}
		return nil, &CredentialsError{Message: msg}
	}

	// 2. Подпись токена
	return s.issue(method, result.UserID, domain.UserFields{
		Username: result.Username,
		Email:    result.Email,
		Scopes:   result.Scopes,
	})
}

// IssueForUserID: вызывающий уже аутентифицировал пользователя, проверяем только запись и статус.
func (s *TokenService) IssueForUserID(ctx context.Context, userID string) (*domain.TokenResponse, error) {
	user, ok := s.identity.GetUserByID(ctx, userID)
	if !ok {
		s.metrics.TokensIssued.WithLabelValues(string(MethodUserID), "not_found").Inc()
		return nil, ErrUserNotFound
	}

	if !user.IsActive() {
		s.metrics.TokensIssued.WithLabelValues(string(MethodUserID), "inactive").Inc()
		s.logger.Info("token requested for inactive user", zap.String("user_id", userID))
		return nil, ErrUserInactive
	}

	scopes := user.Scopes
	if scopes == nil {
		scopes = defaultScopes
	}

	return s.issue(MethodUserID, userID, domain.UserFields{
		Username: user.DisplayName(),
		Email:    user.Email,
		Scopes:   scopes,
	})
}

func (s *TokenService) issue(method IssueMethod, subject string, fields domain.UserFields) (*domain.TokenResponse, error) {
	ttl := s.issuer.TTL()

	token, err := s.issuer.Issue(subject, fields, ttl)
	if err != nil {
		s.metrics.TokensIssued.WithLabelValues(string(method), "error").Inc()
		s.logger.Error("failed to issue token", zap.String("user_id", subject), zap.Error(err))
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.TokensIssued.WithLabelValues(string(method), "issued").Inc()
	s.logger.Info("token issued",
		zap.String("method", string(method)),
		zap.String("user_id", subject),
		zap.Strings("scopes", fields.Scopes))

	return &domain.TokenResponse{
		AccessToken: token,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   int64(ttl / time.Second),
		UserID:      subject,
		Username:    fields.Username,
		Email:       fields.Email,
	}, nil
}
