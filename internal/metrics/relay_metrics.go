package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics собирает метрики ретранслятора outbox.
type OutboxMetrics struct {
	attempts      *prometheus.CounterVec
	pending       prometheus.Gauge
	oldestPending prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики outbox в reg (при nil используется DefaultRegisterer).
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		attempts: register(reg, "bookstore_outbox_publish_attempts_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_outbox_publish_attempts_total",
			Help: "Outbox publish attempts grouped by result",
		}, []string{"result"})),
		pending: register(reg, "bookstore_outbox_pending_records", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bookstore_outbox_pending_records",
			Help: "Pending records in the transactional outbox",
		})),
		oldestPending: register(reg, "bookstore_outbox_oldest_pending_age_seconds", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bookstore_outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest pending outbox record",
		})),
	}
}

// RecordAttempt считает попытку публикации: sent, retry_error, failed, dlq_failed.
func (m *OutboxMetrics) RecordAttempt(result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет размер и возраст backlog.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.pending.Set(float64(pending))
	m.oldestPending.Set(oldestAge.Seconds())
}

// IdempotencyMetrics собирает метрики idempotency-ключей и их очистки.
type IdempotencyMetrics struct {
	cleanupRuns    *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
	replays        *prometheus.CounterVec
}

// NewIdempotencyMetrics регистрирует метрики idempotency в reg (при nil используется DefaultRegisterer).
func NewIdempotencyMetrics(reg prometheus.Registerer) *IdempotencyMetrics {
	return &IdempotencyMetrics{
		cleanupRuns: register(reg, "bookstore_idempotency_cleanup_runs_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_idempotency_cleanup_runs_total",
			Help: "Idempotency cleanup cycles grouped by result",
		}, []string{"result"})),
		cleanupDeleted: register(reg, "bookstore_idempotency_cleanup_deleted_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookstore_idempotency_cleanup_deleted_total",
			Help: "Expired idempotency keys removed by cleanup",
		})),
		replays: register(reg, "bookstore_idempotency_requests_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_idempotency_requests_total",
			Help: "Requests carrying an idempotency key grouped by outcome",
		}, []string{"method", "outcome"})),
	}
}

// RecordCleanup фиксирует результат одного цикла очистки.
func (m *IdempotencyMetrics) RecordCleanup(deleted int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.cleanupRuns.WithLabelValues("error").Inc()
		return
	}
	m.cleanupRuns.WithLabelValues("ok").Inc()
	m.cleanupDeleted.Add(float64(deleted))
}

// RecordRequest фиксирует исход запроса с ключом: new, replay, in_progress, conflict.
func (m *IdempotencyMetrics) RecordRequest(method, outcome string) {
	if m == nil {
		return
	}
	m.replays.WithLabelValues(method, outcome).Inc()
}
