package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/spaceai-auth-tokens/internal/domain"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra"
	"go.uber.org/zap"
)

const (
	opLogin   = "login"
	opGetUser = "get_user"

	breakerName = "user-service"

	// Ответ апстрима больше этого считаем мусором
	maxResponseBytes = 1 << 20
)

// BreakerDisabled — состояние для /api/v1/admin/info, когда предохранитель не настроен.
const BreakerDisabled = "disabled"

// Сообщения попадают в detail ответа 401, поэтому без внутренних подробностей.
const (
	msgValidated          = "User validated successfully"
	msgInvalidCredentials = "Invalid credentials"
	msgUserNotFound       = "User not found"
	msgTimeout            = "User service timeout"
	msgConnection         = "User service connection error"
	msgUnavailable        = "User service unavailable"
	msgBadResponse        = "Unexpected user service response"
)

type upstreamResponse struct {
	StatusCode int
	Body       []byte
}

type loginResponse struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Scopes   []string `json:"scopes"`
}

// IdentityClient ходит в сервис пользователей и сводит любые его ответы и ошибки
// к ValidationResult / "нет пользователя". Наружу ошибки не пробрасываются.
type IdentityClient struct {
	baseURL    string
	loginPath  string
	loginField string
	usersPath  string
	timeout    time.Duration

	http    *http.Client
	cb      *gobreaker.CircuitBreaker // nil — предохранитель выключен
	metrics *infra.Metrics
	logger  *zap.Logger
}

// NewIdentityClient создает клиент. Ретраев нет: один вызов на операцию.
func NewIdentityClient(cfg infra.UserServiceConfig, metrics *infra.Metrics, logger *zap.Logger) *IdentityClient {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	c := &IdentityClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		loginPath:  cfg.LoginPath,
		loginField: cfg.LoginField,
		usersPath:  strings.TrimRight(cfg.UsersPath, "/"),
		timeout:    cfg.Timeout(),
		http:       &http.Client{Timeout: cfg.Timeout()},
		metrics:    metrics,
		logger:     logger.Named("identity-client"),
	}
	if c.loginField == "" {
		c.loginField = "email"
	}

	// Предохранитель только по явной настройке: 0 — выключен, каждый вызов идет в апстрим
	if cfg.CBConsecutiveFailures > 0 {
		c.cb = newBreaker(cfg, c.metrics, c.logger)
	}

	return c
}

func newBreaker(cfg infra.UserServiceConfig, metrics *infra.Metrics, logger *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.CBConsecutiveFailures

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return cb
}

// BreakerState — текущее состояние предохранителя (для /api/v1/admin/info).
func (c *IdentityClient) BreakerState() string {
	if c.cb == nil {
		return BreakerDisabled
	}
	return c.cb.State().String()
}

// ValidateCredentials проверяет логин/пароль через POST {login_path}.
// 200 -> valid, 401 / 404 / прочее -> invalid с сообщением, сетевые сбои -> invalid (fail-closed).
func (c *IdentityClient) ValidateCredentials(ctx context.Context, username, password string) domain.ValidationResult {
	payload := map[string]string{
		c.loginField: username,
		"password":   password,
	}

	resp, err := c.call(ctx, opLogin, http.MethodPost, c.loginPath, payload)
	if err != nil {
		return domain.ValidationResult{Valid: false, Message: failureMessage(err)}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var data loginResponse
		if err := json.Unmarshal(resp.Body, &data); err != nil || data.UserID == "" {
			c.logger.Warn("malformed login response", zap.Error(err))
			return domain.ValidationResult{Valid: false, Message: msgBadResponse}
		}
		if data.Scopes == nil {
			data.Scopes = []string{}
		}
		return domain.ValidationResult{
			Valid:    true,
			UserID:   data.UserID,
			Username: data.Username,
			Email:    data.Email,
			Scopes:   data.Scopes,
			Message:  msgValidated,
		}
	case http.StatusUnauthorized:
		return domain.ValidationResult{Valid: false, Message: msgInvalidCredentials}
	case http.StatusNotFound:
		return domain.ValidationResult{Valid: false, Message: msgUserNotFound}
	default:
		return domain.ValidationResult{Valid: false, Message: fmt.Sprintf("User service error: %d", resp.StatusCode)}
	}
}

// GetUserByID читает запись пользователя через GET {users_path}/{id}.
// Все, кроме 200 с корректным JSON, — (nil, false).
func (c *IdentityClient) GetUserByID(ctx context.Context, id string) (*domain.UserRecord, bool) {
	if id == "" {
		return nil, false
	}

	resp, err := c.call(ctx, opGetUser, http.MethodGet, c.usersPath+"/"+url.PathEscape(id), nil)
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var user domain.UserRecord
	if err := json.Unmarshal(resp.Body, &user); err != nil {
		c.logger.Warn("malformed user record", zap.String("user_id", id), zap.Error(err))
		return nil, false
	}
	if user.UserID == "" {
		user.UserID = id
	}
	return &user, true
}

// call выполняет один запрос (через Circuit Breaker, если он включен).
// Для предохранителя отказ — это сетевая ошибка или 5xx; 4xx — нормальный ответ.
func (c *IdentityClient) call(ctx context.Context, op, method, path string, payload any) (*upstreamResponse, error) {
	start := time.Now()

	exec := func() (interface{}, error) {
		resp, err := c.roundTrip(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &UpstreamError{Kind: KindRejected, StatusCode: resp.StatusCode}
		}
		return resp, nil
	}

	var (
		res any
		err error
	)
	if c.cb != nil {
		res, err = c.cb.Execute(exec)
	} else {
		res, err = exec()
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &UpstreamError{Kind: KindUnavailable, Cause: err}
	}

	resp, _ := res.(*upstreamResponse)
	c.observe(op, start, resp, err)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *IdentityClient) roundTrip(ctx context.Context, method, path string, payload any) (*upstreamResponse, error) {
	// Таймаут на уровне вызова, помимо http.Client.Timeout
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &UpstreamError{Kind: KindUnavailable, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Kind: KindUnavailable, Timeout: isTimeout(err), Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UpstreamError{Kind: KindUnavailable, Timeout: isTimeout(err), Cause: err}
	}

	return &upstreamResponse{StatusCode: resp.StatusCode, Body: data}, nil
}

func (c *IdentityClient) observe(op string, start time.Time, resp *upstreamResponse, err error) {
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	c.metrics.UpstreamDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())

	var upErr *UpstreamError
	switch {
	case errors.As(err, &upErr):
		c.metrics.UpstreamErrors.WithLabelValues(op, string(upErr.Kind)).Inc()
		c.logger.Warn("user service call failed",
			zap.String("op", op),
			zap.String("kind", string(upErr.Kind)),
			zap.Int("status", upErr.StatusCode),
			zap.Error(upErr.Cause))
	case err != nil:
		c.metrics.UpstreamErrors.WithLabelValues(op, string(KindUnavailable)).Inc()
		c.logger.Error("user service call failed", zap.String("op", op), zap.Error(err))
	case resp.StatusCode >= http.StatusMultipleChoices:
		c.metrics.UpstreamErrors.WithLabelValues(op, string(KindRejected)).Inc()
		c.logger.Debug("user service rejected request", zap.String("op", op), zap.Int("status", resp.StatusCode))
	}
}

// failureMessage переводит ошибку вызова в сообщение ValidationResult.
func failureMessage(err error) string {
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		return msgConnection
	}
	switch {
	case upErr.Kind == KindRejected:
		return fmt.Sprintf("User service error: %d", upErr.StatusCode)
	case upErr.Timeout:
		return msgTimeout
	case errors.Is(upErr, gobreaker.ErrOpenState), errors.Is(upErr, gobreaker.ErrTooManyRequests):
		return msgUnavailable
	default:
		return msgConnection
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
