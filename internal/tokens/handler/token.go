package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra"
	"github.com/xela07ax/spaceai-auth-tokens/internal/tokens/service"
	"go.uber.org/zap"
)

// TokenService Описываем, что нам нужно от сервиса выдачи
type TokenService interface {
	IssueForCredentials(ctx context.Context, method service.IssueMethod, creds domain.Credentials) (*domain.TokenResponse, error)
	IssueForUserID(ctx context.Context, userID string) (*domain.TokenResponse, error)
}

type TokenHandler struct {
	service TokenService
	logger  *zap.Logger
}

func NewTokenHandler(s TokenService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{service: s, logger: logger.Named("token-handler")}
}

// Create — POST /tokens, JSON {username, password}.
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		infra.WriteError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.requireCredentials(w, r, creds) {
		return
	}

	resp, err := h.service.IssueForCredentials(r.Context(), service.MethodCredentials, creds)
	h.respond(w, r, resp, err)
}

// CreateOAuth — POST /tokens/oauth, форма OAuth2 password grant.
func (h *TokenHandler) CreateOAuth(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		infra.WriteError(w, r, http.StatusBadRequest, "Invalid form body")
		return
	}

	// grant_type необязателен, но если передан — только password
	if gt := r.PostForm.Get("grant_type"); gt != "" && gt != "password" {
		infra.WriteError(w, r, http.StatusBadRequest, "Unsupported grant_type")
		return
	}

	creds := domain.Credentials{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if !h.requireCredentials(w, r, creds) {
		return
	}

	resp, err := h.service.IssueForCredentials(r.Context(), service.MethodOAuth, creds)
	h.respond(w, r, resp, err)
}

// CreateByUserID — POST /tokens/by-user-id, пользователь уже аутентифицирован апстримом.
func (h *TokenHandler) CreateByUserID(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenByUserIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		infra.WriteError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		infra.WriteError(w, r, http.StatusUnprocessableEntity, missingField("user_id"))
		return
	}

	resp, err := h.service.IssueForUserID(r.Context(), req.UserID)
	h.respond(w, r, resp, err)
}

func (h *TokenHandler) requireCredentials(w http.ResponseWriter, r *http.Request, creds domain.Credentials) bool {
	switch {
	case creds.Username == "":
		infra.WriteError(w, r, http.StatusUnprocessableEntity, missingField("username"))
		return false
	case creds.Password == "":
		infra.WriteError(w, r, http.StatusUnprocessableEntity, missingField("password"))
		return false
	}
	return true
}

// respond маппит ошибки сервиса в HTTP статусы. Внутренние детали наружу не уходят.
func (h *TokenHandler) respond(w http.ResponseWriter, r *http.Request, resp *domain.TokenResponse, err error) {
	if err == nil {
		infra.WriteJSON(w, r, http.StatusOK, resp)
		return
	}

	var credErr *service.CredentialsError
	switch {
	case errors.As(err, &credErr):
		w.Header().Set("WWW-Authenticate", "Bearer")
		infra.WriteError(w, r, http.StatusUnauthorized, credErr.Message)
	case errors.Is(err, service.ErrUserNotFound):
		infra.WriteError(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrUserInactive):
		infra.WriteError(w, r, http.StatusForbidden, "User account is not active")
	default:
		h.logger.Error("token issuance failed",
			zap.String("trace_id", infra.TraceID(r.Context())),
			zap.Error(err))
		infra.WriteError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}
