package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины отказа в оформлении заказа.
const (
	ReasonBookNotFound      = "book_not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonConflict          = "transaction_conflict"
	ReasonInternal          = "internal"
)

// Исходы отмены заказа.
const (
	CancelResultCancelled        = "cancelled"
	CancelResultNotFound         = "not_found"
	CancelResultAlreadyCancelled = "already_cancelled"
	CancelResultWindowExpired    = "window_expired"
	CancelResultError            = "error"
)

// CheckoutMetrics собирает метрики оформления и отмены заказов. Все методы безопасны для nil.
type CheckoutMetrics struct {
	ordersPlaced    prometheus.Counter
	placeRejected   *prometheus.CounterVec
	cancellations   *prometheus.CounterVec
	trackingUpdates *prometheus.CounterVec
	txRetries       prometheus.Counter
	notifications   *prometheus.CounterVec
	pendingNotifies prometheus.Gauge
	reservedUnits   prometheus.Counter
	releasedUnits   prometheus.Counter
	placeDuration   prometheus.Histogram
	cancelDuration  prometheus.Histogram
}

// NewCheckoutMetrics регистрирует метрики в DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в переданном реестре (удобно в тестах).
func NewCheckoutMetricsWithRegisterer(reg prometheus.Registerer) *CheckoutMetrics {
	latency := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

	return &CheckoutMetrics{
		ordersPlaced: register(reg, "bookstore_orders_placed_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookstore_orders_placed_total",
			Help: "Orders committed by the placement transaction",
		})),
		placeRejected: register(reg, "bookstore_order_placement_rejected_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_order_placement_rejected_total",
			Help: "Order placements aborted, by reason",
		}, []string{"reason"})),
		cancellations: register(reg, "bookstore_order_cancellations_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_order_cancellations_total",
			Help: "Cancellation attempts, by result",
		}, []string{"result"})),
		trackingUpdates: register(reg, "bookstore_tracking_updates_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_tracking_updates_total",
			Help: "Admin tracking status changes, by new status",
		}, []string{"status"})),
		txRetries: register(reg, "bookstore_tx_retries_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookstore_tx_retries_total",
			Help: "Transactions retried after serialization failure or deadlock",
		})),
		notifications: register(reg, "bookstore_notifications_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_notifications_total",
			Help: "Best-effort customer notifications, by kind and result",
		}, []string{"kind", "result"})),
		pendingNotifies: register(reg, "bookstore_notifications_in_flight", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bookstore_notifications_in_flight",
			Help: "Notifications dispatched but not finished yet",
		})),
		reservedUnits: register(reg, "bookstore_stock_reserved_units_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookstore_stock_reserved_units_total",
			Help: "Book units reserved by committed orders",
		})),
		releasedUnits: register(reg, "bookstore_stock_released_units_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookstore_stock_released_units_total",
			Help: "Book units returned to stock by committed cancellations",
		})),
		placeDuration: register(reg, "bookstore_order_placement_duration_seconds", prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookstore_order_placement_duration_seconds",
			Help:    "Duration of the placement transaction including retries",
			Buckets: latency,
		})),
		cancelDuration: register(reg, "bookstore_order_cancellation_duration_seconds", prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookstore_order_cancellation_duration_seconds",
			Help:    "Duration of the cancellation transaction including retries",
			Buckets: latency,
		})),
	}
}

// RecordOrderPlaced фиксирует успешное оформление.
func (m *CheckoutMetrics) RecordOrderPlaced(units int, d time.Duration) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.reservedUnits.Add(float64(units))
	m.placeDuration.Observe(d.Seconds())
}

// RecordPlacementRejected фиксирует отказ в оформлении.
func (m *CheckoutMetrics) RecordPlacementRejected(reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.placeRejected.WithLabelValues(reason).Inc()
	m.placeDuration.Observe(d.Seconds())
}

// RecordCancellation фиксирует исход отмены; released показывает, сколько единиц вернулось на склад.
func (m *CheckoutMetrics) RecordCancellation(result string, released int, d time.Duration) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(result).Inc()
	m.releasedUnits.Add(float64(released))
	m.cancelDuration.Observe(d.Seconds())
}

// RecordTrackingUpdate фиксирует смену статуса доставки.
func (m *CheckoutMetrics) RecordTrackingUpdate(status string) {
	if m == nil {
		return
	}
	m.trackingUpdates.WithLabelValues(status).Inc()
}

// RecordTxRetry подходит как postgres.RetryObserver.
func (m *CheckoutMetrics) RecordTxRetry(int, error) {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// NotificationStarted / NotificationFinished отслеживают фоновые уведомления.
func (m *CheckoutMetrics) NotificationStarted() {
	if m == nil {
		return
	}
	m.pendingNotifies.Inc()
}

func (m *CheckoutMetrics) NotificationFinished(kind string, sent bool) {
	if m == nil {
		return
	}
	m.pendingNotifies.Dec()
	result := "sent"
	if !sent {
		result = "failed"
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}
