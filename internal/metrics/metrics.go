// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdatesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorbot_updates_received_total",
		Help: "Total number of Telegram updates received",
	}, []string{"type"})

	CommandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorbot_commands_executed_total",
		Help: "Total number of commands executed",
	}, []string{"command"})

	AIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutorbot_ai_request_duration_seconds",
		Help:    "Duration of AI requests",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"provider", "operation", "status"})

	KeyRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorbot_api_key_rotations_total",
		Help: "Total number of API key rotations caused by rate limiting",
	}, []string{"provider"})

	KeysExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorbot_api_keys_exhausted_total",
		Help: "Total number of requests that found every API key rate limited",
	}, []string{"provider"})

	RateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorbot_user_rate_limit_exceeded_total",
		Help: "Total number of updates dropped by the per-user rate limiter",
	})

	BroadcastDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorbot_broadcast_deliveries_total",
		Help: "Total number of broadcast deliveries by outcome",
	}, []string{"status"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tutorbot_active_sessions",
		Help: "Number of users with an in-memory chat history",
	})
)

// ObserveAIRequest records the duration and outcome of one AI call.
func ObserveAIRequest(provider, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	AIRequestDuration.WithLabelValues(provider, operation, status).Observe(time.Since(start).Seconds())
}
