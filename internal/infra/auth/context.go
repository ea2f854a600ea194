package auth

import (
	"context"

	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
)

// Тип для ключа в контексте (избегаем коллизий)
type claimsKey struct{}

func WithClaims(ctx context.Context, claims *domain.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext возвращает claims, положенные NewMiddleware.
func ClaimsFromContext(ctx context.Context) (*domain.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*domain.Claims)
	return claims, ok && claims != nil
}
