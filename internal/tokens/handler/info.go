package handler

import (
	"net/http"

	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra"
)

// UpstreamStatus — состояние Circuit Breaker клиента сервиса пользователей.
type UpstreamStatus interface {
	BreakerState() string
}

type InfoHandler struct {
	info     domain.ServiceInfo
	upstream UpstreamStatus
}

func NewInfoHandler(cfg *infra.Config, upstream UpstreamStatus) *InfoHandler {
	return &InfoHandler{
		info: domain.ServiceInfo{
			Service:          cfg.App.Name,
			Version:          cfg.App.Version,
			Environment:      cfg.App.Environment,
			Debug:            cfg.App.Debug,
			JWTAlgorithm:     cfg.Auth.JWTAlgorithm,
			JWTExpireMinutes: cfg.Auth.JWTExpireMinutes,
			APIVersion:       infra.APIV1Prefix,
		},
		upstream: upstream,
	}
}

func (h *InfoHandler) Root(w http.ResponseWriter, r *http.Request) {
	infra.WriteJSON(w, r, http.StatusOK, map[string]string{
		"service":     h.info.Service,
		"version":     h.info.Version,
		"status":      "running",
		"environment": h.info.Environment,
	})
}

// Health не ходит в апстрим: liveness самого процесса.
func (h *InfoHandler) Health(w http.ResponseWriter, r *http.Request) {
	infra.WriteJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.info.Service,
		"version": h.info.Version,
	})
}

func (h *InfoHandler) Info(w http.ResponseWriter, r *http.Request) {
	infra.WriteJSON(w, r, http.StatusOK, h.info)
}

// AdminInfo — /info плюс состояние апстрима. Только для scope "admin".
func (h *InfoHandler) AdminInfo(w http.ResponseWriter, r *http.Request) {
	infra.WriteJSON(w, r, http.StatusOK, struct {
		domain.ServiceInfo
		UserServiceBreaker string `json:"user_service_breaker"`
	}{
		ServiceInfo:        h.info,
		UserServiceBreaker: h.upstream.BreakerState(),
	})
}
