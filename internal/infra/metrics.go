package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: выданные токены по способу выдачи и исходу
	TokensIssued *prometheus.CounterVec

	// Проверки токенов: valid / invalid / expired
	Validations *prometheus.CounterVec

	// Latency: исходящие вызовы в сервис пользователей
	UpstreamDuration *prometheus.HistogramVec

	// Errors: классификация отказов апстрима
	UpstreamErrors *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		TokensIssued: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of token issuance attempts.",
		}, []string{"method", "outcome"}), // method: credentials, user_id, oauth

		Validations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_validations_total",
			Help: "Total number of token verifications by result.",
		}, []string{"result"}),

		UpstreamDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_upstream_request_duration_seconds",
			Help:    "Histogram of user service call latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation", "status"}),

		UpstreamErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_upstream_errors_total",
			Help: "Total number of user service failures by kind.",
		}, []string{"operation", "kind"}), // kind: upstream_unavailable, upstream_rejected

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "auth_upstream_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
	}
}
