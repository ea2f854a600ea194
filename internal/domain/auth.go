package domain

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeBearer — единственный тип токена, который выдает сервис.
const TokenTypeBearer = "bearer"

// Claims — полезная нагрузка токена. sub/iat/exp/iss живут в RegisteredClaims.
type Claims struct {
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

// UserID возвращает субъект токена (sub).
func (c *Claims) UserID() string {
	return c.Subject
}

// HasScopes проверяет, что токен содержит все перечисленные scope.
func (c *Claims) HasScopes(required ...string) bool {
	for _, s := range required {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}
	return true
}

// UserFields — дополнительные поля, которые вшиваются в токен при выдаче.
type UserFields struct {
	Username string
	Email    string
	Scopes   []string
}

// Credentials — пара логин/пароль. Живет только на время одного запроса.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenByUserIDRequest — запрос на выдачу токена по уже проверенному user_id.
type TokenByUserIDRequest struct {
	UserID string `json:"user_id"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "bearer"
	ExpiresIn   int64  `json:"expires_in"` // В секундах
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
}

type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse — ответ ручек /validate*. Ошибки проверки
// выражаются через Valid=false, а не через HTTP статус.
type ValidateTokenResponse struct {
	Valid     bool     `json:"valid"`
	UserID    string   `json:"user_id,omitempty"`
	Username  string   `json:"username,omitempty"`
	Email     string   `json:"email,omitempty"`
	Scopes    []string `json:"scopes"`
	ExpiresAt string   `json:"expires_at,omitempty"` // ISO-8601 (RFC 3339, UTC)
	Message   string   `json:"message,omitempty"`
}
