package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
)

// UnverifiedExpiry — exp, прочитанный БЕЗ проверки подписи.
// Отдельный тип, чтобы его нельзя было передать туда, где ждут проверенные claims.
// Не использовать для решений об авторизации — для этого есть Codec.Verify.
type UnverifiedExpiry struct {
	at time.Time
}

func (u UnverifiedExpiry) Time() time.Time { return u.at }

// PeekExpiration читает exp без проверки подписи. Никогда не паникует:
// на битом токене или без exp возвращает false.
func PeekExpiration(tokenStr string) (UnverifiedExpiry, bool) {
	claims := &domain.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return UnverifiedExpiry{}, false
	}
	if claims.ExpiresAt == nil {
		return UnverifiedExpiry{}, false
	}
	return UnverifiedExpiry{at: claims.ExpiresAt.Time}, true
}
