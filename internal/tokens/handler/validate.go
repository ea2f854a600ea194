package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra/auth"
	"github.com/xela07ax/spaceai-auth-tokens/internal/tokens/service"
)

// Validator — проверка токена (реализует service.ValidationService).
type Validator interface {
	Validate(token string) domain.ValidateTokenResponse
	Authorize(token string, required ...string) (*domain.Claims, error)
}

// ValidateHandler: результат проверки токена всегда 200 с флагом valid.
// Ошибочный статус только для битого запроса.
type ValidateHandler struct {
	validator Validator
}

func NewValidateHandler(v Validator) *ValidateHandler {
	return &ValidateHandler{validator: v}
}

// Validate — POST /validate, JSON {token}.
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req domain.ValidateTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		infra.WriteError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	infra.WriteJSON(w, r, http.StatusOK, h.validator.Validate(req.Token))
}

// ValidateBearer — POST /validate/bearer. Токен из тела, иначе из Authorization.
func (h *ValidateHandler) ValidateBearer(w http.ResponseWriter, r *http.Request) {
	var req domain.ValidateTokenRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		infra.WriteError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	token := req.Token
	if token == "" {
		token, _ = auth.BearerToken(r)
	}
	infra.WriteJSON(w, r, http.StatusOK, h.validator.Validate(token))
}

// ValidateQuery — GET /validate/me?token=...
func (h *ValidateHandler) ValidateQuery(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("token") {
		infra.WriteError(w, r, http.StatusUnprocessableEntity, missingField("token"))
		return
	}
	infra.WriteJSON(w, r, http.StatusOK, h.validator.Validate(r.URL.Query().Get("token")))
}

// meResponse — claims текущего вызывающего.
type meResponse struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username,omitempty"`
	Email     string   `json:"email,omitempty"`
	Scopes    []string `json:"scopes"`
	IssuedAt  string   `json:"issued_at,omitempty"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

func newMeResponse(c *domain.Claims) meResponse {
	resp := meResponse{
		UserID:   c.UserID(),
		Username: c.Username,
		Email:    c.Email,
		Scopes:   c.Scopes,
	}
	if resp.Scopes == nil {
		resp.Scopes = []string{}
	}
	if c.IssuedAt != nil {
		resp.IssuedAt = c.IssuedAt.UTC().Format(time.RFC3339)
	}
	if c.ExpiresAt != nil {
		resp.ExpiresAt = c.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Me — GET /me, claims уже положены auth middleware.
func (h *ValidateHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		infra.WriteError(w, r, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	infra.WriteJSON(w, r, http.StatusOK, newMeResponse(claims))
}

// MeScopes — GET /me/scopes?require=a,b: 403, если хотя бы одного scope нет в токене.
func (h *ValidateHandler) MeScopes(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.BearerToken(r)

	claims, err := h.validator.Authorize(token, requiredScopes(r.URL.Query().Get("require"))...)
	switch {
	case errors.Is(err, service.ErrInsufficientScope):
		infra.WriteError(w, r, http.StatusForbidden, "Insufficient permissions")
		return
	case err != nil:
		w.Header().Set("WWW-Authenticate", "Bearer")
		infra.WriteError(w, r, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	infra.WriteJSON(w, r, http.StatusOK, newMeResponse(claims))
}

// requiredScopes разбирает "a, b,,c" в [a b c].
func requiredScopes(raw string) []string {
	var scopes []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}
