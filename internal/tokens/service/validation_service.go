package service

import (
	"errors"
	"time"

	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra/auth"
	"go.uber.org/zap"
)

// ErrInsufficientScope — токен валиден, но прав не хватает.
var ErrInsufficientScope = errors.New("insufficient permissions")

// TokenVerifier — проверка подписи и срока (реализует auth.Codec).
type TokenVerifier interface {
	Verify(tokenStr string) (*domain.Claims, error)
}

type ValidationService struct {
	verifier TokenVerifier
	metrics  *infra.Metrics
	logger   *zap.Logger
}

func NewValidationService(verifier TokenVerifier, metrics *infra.Metrics, logger *zap.Logger) *ValidationService {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &ValidationService{
		verifier: verifier,
		metrics:  metrics,
		logger:   logger.Named("validation-service"),
	}
}

// Validate никогда не возвращает ошибку: любой отказ — Valid=false с пояснением.
func (s *ValidationService) Validate(token string) domain.ValidateTokenResponse {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		s.metrics.Validations.WithLabelValues(resultLabel(err)).Inc()
		s.logger.Debug("token rejected", zap.Error(err))
		return domain.ValidateTokenResponse{
			Valid:   false,
			Scopes:  []string{},
			Message: "Token validation failed: " + reason(err),
		}
	}

	s.metrics.Validations.WithLabelValues("valid").Inc()
	resp := domain.ValidateTokenResponse{
		Valid:    true,
		UserID:   claims.UserID(),
		Username: claims.Username,
		Email:    claims.Email,
		Scopes:   claims.Scopes,
		Message:  "Token is valid",
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Authorize — вариант с проверкой scope: все required должны быть в токене.
func (s *ValidationService) Authorize(token string, required ...string) (*domain.Claims, error) {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		s.metrics.Validations.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}
	if !claims.HasScopes(required...) {
		s.metrics.Validations.WithLabelValues("forbidden").Inc()
		return nil, ErrInsufficientScope
	}
	s.metrics.Validations.WithLabelValues("valid").Inc()
	return claims, nil
}

func resultLabel(err error) string {
	if errors.Is(err, auth.ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}

// reason — безопасное для клиента описание ошибки, без текста парсера.
func reason(err error) string {
	var tokErr *auth.TokenError
	if errors.As(err, &tokErr) {
		return tokErr.Message
	}
	return "Invalid token"
}
