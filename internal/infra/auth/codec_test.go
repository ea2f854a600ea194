package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
)

var testSecret = []byte("test-secret-test-secret-test-secret")

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, "HS256", time.Hour, WithClock(clock.Now), WithIssuer("auth-tokens"))
	require.NoError(t, err)
	return c
}

func TestNewCodecValidation(t *testing.T) {
	_, err := NewCodec(nil, "HS256", time.Minute)
	assert.Error(t, err)

	_, err = NewCodec(testSecret, "HS256", 0)
	assert.Error(t, err)

	_, err = NewCodec(testSecret, "HS256", 500*time.Millisecond)
	assert.Error(t, err)

	for _, alg := range []string{"RS256", "none", "EdDSA", ""} {
		_, err = NewCodec(testSecret, alg, time.Minute)
		assert.Error(t, err, alg)
	}

	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		c, err := NewCodec(testSecret, alg, time.Minute)
		require.NoError(t, err, alg)
		assert.Equal(t, alg, c.Algorithm())
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)

	token, err := c.Issue("user-42", domain.UserFields{
		Username: "bob",
		Email:    "bob@example.com",
		Scopes:   []string{"read"},
	}, 0)
	require.NoError(t, err)

	claims, err := c.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID())
	assert.Equal(t, "bob", claims.Username)
	assert.Equal(t, "bob@example.com", claims.Email)
	assert.Equal(t, []string{"read"}, claims.Scopes)
	assert.Equal(t, "auth-tokens", claims.Issuer)
	// ttl по умолчанию
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestIssueScopesAndTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)

	token, err := c.Issue("u1", domain.UserFields{Scopes: []string{"read", "write"}}, 60*time.Second)
	require.NoError(t, err)

	claims, err := c.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, claims.Scopes)
	assert.Equal(t, 60*time.Second, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestIssueSubSecondTTL(t *testing.T) {
	// 0.9s до границы секунды: усечение до секунд дало бы exp == iat
	clock := &fakeClock{t: time.Unix(1_700_000_000, 50_000_000)}
	c := newTestCodec(t, clock)

	_, err := c.Issue("u1", domain.UserFields{}, 900*time.Millisecond)
	assert.Error(t, err)

	token, err := c.Issue("u1", domain.UserFields{}, time.Second)
	require.NoError(t, err)
	claims, err := c.Verify(token)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}

func TestIssueIsDeterministic(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)
	fields := domain.UserFields{Username: "a", Scopes: []string{"x"}}

	first, err := c.Issue("u1", fields, time.Minute)
	require.NoError(t, err)
	second, err := c.Issue("u1", fields, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIssueRequiresSubject(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	_, err := c.Issue("", domain.UserFields{}, 0)
	assert.Error(t, err)
}

func TestVerifyEmptyScopesDefault(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	token, err := c.Issue("u1", domain.UserFields{}, 0)
	require.NoError(t, err)

	claims, err := c.Verify(token)
	require.NoError(t, err)
	assert.NotNil(t, claims.Scopes)
	assert.Empty(t, claims.Scopes)
	assert.Empty(t, claims.Username)
}

func TestVerifyExpired(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)

	token, err := c.Issue("u1", domain.UserFields{}, time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = c.Verify(token)
	require.NoError(t, err)
	assert.False(t, c.IsExpired(token))

	// Ровно в момент exp токен уже истек
	clock.Advance(time.Second)
	_, err = c.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
	assert.True(t, c.IsExpired(token))

	var tokErr *TokenError
	require.ErrorAs(t, err, &tokErr)
	assert.Equal(t, CodeTokenExpired, tokErr.Code)
}

func TestVerifyWrongSecret(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	a := newTestCodec(t, clock)
	b, err := NewCodec([]byte("another-secret-another-secret"), "HS256", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	token, err := a.Issue("u1", domain.UserFields{}, 0)
	require.NoError(t, err)

	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyWrongSecretWinsOverExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	a := newTestCodec(t, clock)
	b, err := NewCodec([]byte("another-secret-another-secret"), "HS256", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	token, err := a.Issue("u1", domain.UserFields{}, time.Minute)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := newTestCodec(t, clock)
	exp := jwt.NewNumericDate(clock.Now().Add(time.Minute))

	sign := func(method jwt.SigningMethod, claims jwt.Claims, key interface{}) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"two segments", "abc.def"},
		{"alg none", sign(jwt.SigningMethodNone, &domain.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp}}, jwt.UnsafeAllowNoneSignatureType)},
		{"other hmac alg", sign(jwt.SigningMethodHS512, &domain.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp}}, testSecret)},
		{"missing subject", sign(jwt.SigningMethodHS256, &domain.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}, testSecret)},
		{"missing exp", sign(jwt.SigningMethodHS256, &domain.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, testSecret)},
		{"non-string subject", sign(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 42, "exp": exp.Unix()}, testSecret)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Verify(tc.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	token, err := c.Issue("u1", domain.UserFields{Scopes: []string{"read"}}, 0)
	require.NoError(t, err)

	other, err := c.Issue("admin", domain.UserFields{Scopes: []string{"admin"}}, 0)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	_, err = c.Verify(forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestPeekExpiration(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)
	token, err := c.Issue("u1", domain.UserFields{}, 10*time.Minute)
	require.NoError(t, err)

	exp, ok := PeekExpiration(token)
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(10*time.Minute).Unix(), exp.Time().Unix())

	// Подпись не проверяется: чужой секрет не мешает прочитать exp
	foreign, err := NewCodec([]byte("another-secret-another-secret"), "HS256", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	foreignToken, err := foreign.Issue("u1", domain.UserFields{}, 0)
	require.NoError(t, err)
	_, ok = PeekExpiration(foreignToken)
	assert.True(t, ok)
}

func TestPeekExpirationMalformed(t *testing.T) {
	inputs := []string{"", ".", "..", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.!!!.sig", strings.Repeat("x", 4096)}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			_, ok := PeekExpiration(in)
			assert.False(t, ok)
		})
	}

	c := newTestCodec(t, &fakeClock{t: time.Now()})
	for _, in := range inputs {
		assert.True(t, c.IsExpired(in), "malformed token must be treated as expired")
	}
}

func TestIsExpiredWithoutExp(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString(testSecret)
	require.NoError(t, err)

	_, ok := PeekExpiration(token)
	assert.False(t, ok)
	assert.True(t, c.IsExpired(token))
}
