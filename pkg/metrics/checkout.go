package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconciliationMetrics records how webhook reconciliation runs end.
type ReconciliationMetrics struct {
	outcomes *prometheus.CounterVec
	attempts prometheus.Histogram
	duration prometheus.Histogram
}

// NewReconciliationMetrics registers the reconciliation metrics on the provided registerer.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_outcomes_total",
		Help: "Reconciliation runs by terminal state.",
	}, []string{"state"})
	attempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciliation_lookup_attempts",
		Help:    "Order lookups performed before a run settled.",
		Buckets: []float64{1, 2, 3, 4, 5, 8},
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciliation_duration_seconds",
		Help:    "Wall time of a reconciliation run.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(outcomes, attempts, duration)
	return &ReconciliationMetrics{
		outcomes: outcomes,
		attempts: attempts,
		duration: duration,
	}
}

// Observe records one finished run.
func (m *ReconciliationMetrics) Observe(state string, lookups int, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(state)).Inc()
	m.attempts.Observe(float64(lookups))
	m.duration.Observe(elapsed.Seconds())
}

// WebhookMetrics counts processor deliveries by type and outcome.
type WebhookMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(deliveries)
	return &WebhookMetrics{deliveries: deliveries}
}

func (m *WebhookMetrics) IncDelivery(eventType, outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// Outbox publish results.
const (
	PublishPublished    = "published"
	PublishRetried      = "retried"
	PublishDeadLettered = "dead_lettered"
)

// OutboxMetrics counts publisher results per event type.
type OutboxMetrics struct {
	results *prometheus.CounterVec
	batch   prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_size",
		Help:    "Rows claimed per publisher batch.",
		Buckets: []float64{1, 5, 10, 25, 50, 100},
	})
	reg.MustRegister(results, batch)
	return &OutboxMetrics{results: results, batch: batch}
}

func (m *OutboxMetrics) IncResult(eventType, result string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (m *OutboxMetrics) ObserveBatch(rows int) {
	if m == nil || m.batch == nil || rows == 0 {
		return
	}
	m.batch.Observe(float64(rows))
}
