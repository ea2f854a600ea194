package connectors

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Пользователи, которых знает мок сервиса пользователей.
const (
	MockActiveUserID   = "123e4567-e89b-12d3-a456-426614174000"
	MockInactiveUserID = "inactive-user"
	MockNoScopesUserID = "no-scopes-user"
	MockWrongPassword  = "wrong"
)

type mockUser struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email"`
	Status   string   `json:"status,omitempty"`
	Active   *bool    `json:"active,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
}

// MockOptions настраивает поведение мока.
type MockOptions struct {
	LoginPath  string
	LoginField string
	UsersPath  string
	Latency    time.Duration // Имитация медленного апстрима
}

// MockUserService — тестовый дублер сервиса пользователей с тем же HTTP-контрактом.
type MockUserService struct {
	opts  MockOptions
	users map[string]mockUser
}

func NewMockUserService(opts MockOptions) *MockUserService {
	if opts.LoginPath == "" {
		opts.LoginPath = "/api/v1/auth/login"
	}
	if opts.LoginField == "" {
		opts.LoginField = "email"
	}
	if opts.UsersPath == "" {
		opts.UsersPath = "/internal/v1/users"
	}

	active, inactive := true, false
	return &MockUserService{
		opts: opts,
		users: map[string]mockUser{
			MockActiveUserID: {
				UserID:   MockActiveUserID,
				Username: "testuser",
				Email:    "testuser@example.com",
				Scopes:   []string{"read", "write", "admin"},
				Active:   &active,
			},
			MockInactiveUserID: {
				UserID:   MockInactiveUserID,
				Username: "sleeper",
				Email:    "sleeper@example.com",
				Status:   "SUSPENDED",
				Active:   &inactive,
			},
			MockNoScopesUserID: {
				UserID: MockNoScopesUserID,
				Email:  "plain@example.com",
				Status: "ACTIVE",
			},
		},
	}
}

// Routes возвращает роутер мока.
func (m *MockUserService) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(m.latency)
	r.Post(m.opts.LoginPath, m.login)
	r.Get(m.opts.UsersPath+"/{id}", m.getUser)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeMockJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "mock-user-management"})
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeMockJSON(w, http.StatusOK, map[string]any{
			"service": "Mock User Management Service",
			"status":  "running",
			"endpoints": []string{
				"POST " + m.opts.LoginPath,
				"GET " + m.opts.UsersPath + "/{user_id}",
				"GET /health",
			},
		})
	})
	return r
}

func (m *MockUserService) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.opts.Latency > 0 {
			select {
			case <-time.After(m.opts.Latency):
				// Имитация работы
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// login: пароль "wrong" -> 401, логин с префиксом "missing" -> 404, иначе 200.
func (m *MockUserService) login(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMockJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}

	login := req[m.opts.LoginField]
	switch {
	case login == "" || strings.HasPrefix(login, "missing"):
		writeMockJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
		return
	case req["password"] == MockWrongPassword:
		writeMockJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
		return
	}

	username, _, _ := strings.Cut(login, "@")
	email := login
	if !strings.Contains(email, "@") {
		email = login + "@example.com"
	}
	writeMockJSON(w, http.StatusOK, map[string]any{
		"user_id":  MockActiveUserID,
		"username": username,
		"email":    email,
		"scopes":   []string{"read", "write"},
		"status":   "active",
	})
}

func (m *MockUserService) getUser(w http.ResponseWriter, r *http.Request) {
	user, ok := m.users[chi.URLParam(r, "id")]
	if !ok {
		writeMockJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
		return
	}
	writeMockJSON(w, http.StatusOK, user)
}

func writeMockJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
