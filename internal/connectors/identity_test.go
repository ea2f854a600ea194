package connectors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra"
	"go.uber.org/zap"
)

func testUserServiceConfig(url string) infra.UserServiceConfig {
	return infra.UserServiceConfig{
		URL:                   url,
		TimeoutSeconds:        1,
		LoginPath:             "/api/v1/auth/login",
		LoginField:            "email",
		UsersPath:             "/internal/v1/users",
		CBMaxRequests:         1,
		CBInterval:            time.Minute,
		CBTimeout:             time.Minute,
		CBConsecutiveFailures: 5,
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*IdentityClient, *infra.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	metrics := infra.NewMetrics(prometheus.NewRegistry())
	return NewIdentityClient(testUserServiceConfig(srv.URL), metrics, zap.NewNop()), metrics
}

func statusHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestValidateCredentialsStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		valid   bool
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"nope"}`, false, "Invalid credentials"},
		{"not found", http.StatusNotFound, `{}`, false, "User not found"},
		{"server error", http.StatusInternalServerError, `{}`, false, "User service error: 500"},
		{"teapot", http.StatusTeapot, `{}`, false, "User service error: 418"},
		{"accepted is not ok", http.StatusAccepted, `{"user_id":"u1"}`, false, "User service error: 202"},
		{"malformed body", http.StatusOK, `not json`, false, "Unexpected user service response"},
		{"missing user id", http.StatusOK, `{"email":"bob@example.com"}`, false, "Unexpected user service response"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, statusHandler(tc.status, tc.body))
			res := client.ValidateCredentials(t.Context(), "bob", "wrong")
			assert.Equal(t, tc.valid, res.Valid)
			assert.Equal(t, tc.message, res.Message)
			assert.Empty(t, res.UserID)
		})
	}
}

func TestValidateCredentialsSuccess(t *testing.T) {
	var got map[string]string
	client, metrics := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		statusHandler(http.StatusOK, `{"user_id":"u1","username":"bob","email":"bob@example.com","scopes":["read","write"]}`)(w, r)
	}))

	res := client.ValidateCredentials(t.Context(), "bob@example.com", "secret")
	assert.Equal(t, domain.ValidationResult{
		Valid:    true,
		UserID:   "u1",
		Username: "bob",
		Email:    "bob@example.com",
		Scopes:   []string{"read", "write"},
		Message:  "User validated successfully",
	}, res)
	assert.Equal(t, map[string]string{"email": "bob@example.com", "password": "secret"}, got)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.UpstreamErrors.WithLabelValues(opLogin, string(KindRejected))))
}

func TestValidateCredentialsDefaultsScopes(t *testing.T) {
	client, _ := newTestClient(t, statusHandler(http.StatusOK, `{"user_id":"u1","email":"bob@example.com"}`))
	res := client.ValidateCredentials(t.Context(), "bob@example.com", "secret")
	require.True(t, res.Valid)
	assert.NotNil(t, res.Scopes)
	assert.Empty(t, res.Scopes)
}

func TestValidateCredentialsUsernameField(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/validate-credentials", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		statusHandler(http.StatusOK, `{"user_id":"u1","username":"bob"}`)(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := testUserServiceConfig(srv.URL)
	cfg.LoginPath = "/internal/validate-credentials"
	cfg.LoginField = "username"
	client := NewIdentityClient(cfg, nil, zap.NewNop())

	res := client.ValidateCredentials(t.Context(), "bob", "secret")
	assert.True(t, res.Valid)
	assert.Equal(t, map[string]string{"username": "bob", "password": "secret"}, got)
}

func TestValidateCredentialsTimeout(t *testing.T) {
	client, metrics := newTestClient(t, NewMockUserService(MockOptions{Latency: 3 * time.Second}).Routes())

	start := time.Now()
	res := client.ValidateCredentials(t.Context(), "bob@example.com", "secret")
	assert.Less(t, time.Since(start), 2500*time.Millisecond)
	assert.False(t, res.Valid)
	assert.Equal(t, "User service timeout", res.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UpstreamErrors.WithLabelValues(opLogin, string(KindUnavailable))))
}

func TestValidateCredentialsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewIdentityClient(testUserServiceConfig(url), nil, zap.NewNop())
	res := client.ValidateCredentials(t.Context(), "bob", "secret")
	assert.False(t, res.Valid)
	assert.Equal(t, "User service connection error", res.Message)
}

func TestCircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	cfg := testUserServiceConfig(srv.URL)
	cfg.CBConsecutiveFailures = 2
	metrics := infra.NewMetrics(prometheus.NewRegistry())
	client := NewIdentityClient(cfg, metrics, zap.NewNop())

	for i := 0; i < 2; i++ {
		res := client.ValidateCredentials(t.Context(), "bob", "secret")
		assert.Equal(t, "User service error: 503", res.Message)
	}
	assert.Equal(t, "open", client.BreakerState())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("user-service")))

	res := client.ValidateCredentials(t.Context(), "bob", "secret")
	assert.False(t, res.Valid)
	assert.Equal(t, "User service unavailable", res.Message)

	_, ok := client.GetUserByID(t.Context(), "u1")
	assert.False(t, ok)
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach upstream")
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	cfg := testUserServiceConfig("")
	srv := httptest.NewServer(statusHandler(http.StatusUnauthorized, `{}`))
	t.Cleanup(srv.Close)
	cfg.URL = srv.URL
	cfg.CBConsecutiveFailures = 1
	client := NewIdentityClient(cfg, nil, zap.NewNop())

	for i := 0; i < 3; i++ {
		assert.Equal(t, "Invalid credentials", client.ValidateCredentials(t.Context(), "bob", "wrong").Message)
	}
	assert.Equal(t, "closed", client.BreakerState())
}

func TestBreakerDisabledByDefault(t *testing.T) {
	var (
		hits      atomic.Int32
		recovered atomic.Bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !recovered.Load() {
			statusHandler(http.StatusInternalServerError, `{}`)(w, r)
			return
		}
		statusHandler(http.StatusOK, `{"user_id":"u1"}`)(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := testUserServiceConfig(srv.URL)
	cfg.CBConsecutiveFailures = 0
	client := NewIdentityClient(cfg, nil, zap.NewNop())
	assert.Equal(t, BreakerDisabled, client.BreakerState())

	for i := 0; i < 5; i++ {
		assert.Equal(t, "User service error: 500", client.ValidateCredentials(t.Context(), "bob", "secret").Message)
	}

	recovered.Store(true)
	res := client.ValidateCredentials(t.Context(), "bob", "secret")
	assert.True(t, res.Valid, res.Message)
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, int32(6), hits.Load(), "every call reaches upstream")

	_, ok := client.GetUserByID(t.Context(), "u1")
	assert.True(t, ok)
	assert.Equal(t, int32(7), hits.Load())
}

func TestGetUserByID(t *testing.T) {
	client, _ := newTestClient(t, NewMockUserService(MockOptions{}).Routes())

	user, ok := client.GetUserByID(t.Context(), MockActiveUserID)
	require.True(t, ok)
	assert.Equal(t, MockActiveUserID, user.UserID)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, []string{"read", "write", "admin"}, user.Scopes)
	assert.True(t, user.IsActive())

	user, ok = client.GetUserByID(t.Context(), MockInactiveUserID)
	require.True(t, ok)
	assert.False(t, user.IsActive())

	user, ok = client.GetUserByID(t.Context(), MockNoScopesUserID)
	require.True(t, ok)
	assert.Nil(t, user.Scopes)
	assert.True(t, user.IsActive())
	assert.Equal(t, "plain@example.com", user.DisplayName())

	_, ok = client.GetUserByID(t.Context(), "unknown")
	assert.False(t, ok)

	_, ok = client.GetUserByID(t.Context(), "")
	assert.False(t, ok)
}

func TestGetUserByIDFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.Handler
	}{
		{"not found", statusHandler(http.StatusNotFound, `{}`)},
		{"server error", statusHandler(http.StatusInternalServerError, `{}`)},
		{"malformed", statusHandler(http.StatusOK, `[1,2`)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, tc.handler)
			user, ok := client.GetUserByID(t.Context(), "u1")
			assert.False(t, ok)
			assert.Nil(t, user)
		})
	}
}

func TestGetUserByIDEscapesPath(t *testing.T) {
	var path string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		statusHandler(http.StatusOK, `{"email":"x@example.com","active":true}`)(w, r)
	}))

	user, ok := client.GetUserByID(t.Context(), "a/b")
	require.True(t, ok)
	assert.Equal(t, "/internal/v1/users/a%2Fb", path)
	assert.Equal(t, "a/b", user.UserID, "missing user_id falls back to requested id")
}
