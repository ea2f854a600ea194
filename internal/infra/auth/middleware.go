package auth

import (
	"net/http"
	"strings"

	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra"
	"go.uber.org/zap"
)

// TokenValidator — то, что нужно middleware от кодека.
type TokenValidator interface {
	Verify(tokenStr string) (*domain.Claims, error)
}

// BearerToken достает токен из "Authorization: Bearer <token>". Схема без учета регистра.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// NewMiddleware защищает роуты: без валидного Bearer токена — 401 с WWW-Authenticate.
func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				unauthorized(w, r)
				return
			}

			claims, err := v.Verify(token)
			if err != nil {
				logger.Warn("auth failure", zap.String("path", r.URL.Path), zap.Error(err))
				unauthorized(w, r)
				return
			}

			// Прокидываем claims в контекст
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireScopes пропускает запрос, только если токен содержит все scope.
// Ставится после NewMiddleware.
func RequireScopes(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				unauthorized(w, r)
				return
			}
			if !claims.HasScopes(scopes...) {
				infra.WriteError(w, r, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	infra.WriteError(w, r, http.StatusUnauthorized, "Could not validate credentials")
}
