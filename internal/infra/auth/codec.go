package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
)

// Codec выпускает и проверяет HMAC-подписанные JWT.
// Состояния нет: валидность выводится из байт токена, секрета и текущего времени.
type Codec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// minTTL — точность NumericDate. Меньший ttl дал бы exp == iat.
const minTTL = time.Second

type Option func(*Codec)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithIssuer проставляет iss в выпускаемые токены.
func WithIssuer(issuer string) Option {
	return func(c *Codec) { c.issuer = issuer }
}

// NewCodec создает кодек. algorithm — HS256, HS384 или HS512; ttl — время жизни по умолчанию.
func NewCodec(secret []byte, algorithm string, ttl time.Duration, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is empty")
	}
	if ttl < minTTL {
		return nil, errors.New("token ttl must be at least one second")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %q", algorithm)
	}

	c := &Codec{
		secret: secret,
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Разрешаем ровно один алгоритм: никаких "none" и подмены HS/RS.
	// Сравнение с exp строгое, без leeway: now >= exp — токен истек.
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// TTL — время жизни токена по умолчанию.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Algorithm — имя алгоритма подписи (для /info).
func (c *Codec) Algorithm() string { return c.method.Alg() }

// Issue собирает claims (sub, iat, exp + поля пользователя) и подписывает их.
// ttl <= 0 означает время жизни по умолчанию; 0 < ttl < 1s — ошибка.
func (c *Codec) Issue(subject string, fields domain.UserFields, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	switch {
	case ttl <= 0:
		ttl = c.ttl
	case ttl < minTTL:
		// iat и exp хранятся в секундах: иначе exp == iat и токен мертв с рождения
		return "", fmt.Errorf("token ttl %s is shorter than one second", ttl)
	}

	now := c.now()
	scopes := make([]string, len(fields.Scopes))
	copy(scopes, fields.Scopes)

	claims := &domain.Claims{
		Username: fields.Username,
		Email:    fields.Email,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify проверяет подпись, срок действия и наличие sub.
// Ошибки всегда *TokenError: ErrTokenExpired или ErrTokenInvalid.
func (c *Codec) Verify(tokenStr string) (*domain.Claims, error) {
	token, err := c.parser.ParseWithClaims(tokenStr, &domain.Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		// Подпись проверяется раньше claims, поэтому expired здесь — только для подлинного токена
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newTokenError(CodeTokenExpired, err)
		}
		return nil, newTokenError(CodeTokenInvalid, err)
	}

	claims, ok := token.Claims.(*domain.Claims)
	if !ok || !token.Valid {
		return nil, newTokenError(CodeTokenInvalid, jwt.ErrTokenInvalidClaims)
	}
	if claims.Subject == "" {
		return nil, newTokenError(CodeTokenInvalid, errors.New("token missing subject"))
	}
	if claims.Scopes == nil {
		claims.Scopes = []string{}
	}
	return claims, nil
}

// IsExpired — удобная обертка над PeekExpiration. Нет exp или мусор на входе — считаем истекшим.
func (c *Codec) IsExpired(tokenStr string) bool {
	exp, ok := PeekExpiration(tokenStr)
	if !ok {
		return true
	}
	return !c.now().Before(exp.Time())
}
