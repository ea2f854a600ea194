package connectors

import "fmt"

// UpstreamKind — класс отказа сервиса пользователей.
type UpstreamKind string

const (
	// KindUnavailable — таймаут, ошибка соединения или открытый Circuit Breaker.
	KindUnavailable UpstreamKind = "upstream_unavailable"
	// KindRejected — апстрим ответил не-2xx.
	KindRejected UpstreamKind = "upstream_rejected"
)

// UpstreamError живет только внутри клиента: наружу он уходит в виде ValidationResult.
type UpstreamError struct {
	Kind       UpstreamKind
	StatusCode int
	Timeout    bool
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.Kind == KindRejected {
		return fmt.Sprintf("%s: status %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s (timeout: %v): %v", e.Kind, e.Timeout, e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}
