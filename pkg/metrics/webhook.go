package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records outcomes of payment-provider webhook deliveries.
type WebhookMetrics struct {
	duration *prometheus.HistogramVec
	handled  *prometheus.CounterVec
	rejected prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_event_duration_seconds",
		Help:    "Duration of webhook event handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	handled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_handled",
		Help: "Webhook events by type and outcome (applied, skipped, ignored, duplicate, error).",
	}, []string{"event_type", "outcome"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_rejections",
		Help: "Webhook deliveries rejected before dispatch for a bad signature.",
	})
	reg.MustRegister(duration, handled, rejected)
	return &WebhookMetrics{
		duration: duration,
		handled:  handled,
		rejected: rejected,
	}
}

// ObserveDuration records handling duration for the event type.
func (m *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncHandled increments the outcome counter for the event type.
func (m *WebhookMetrics) IncHandled(eventType, outcome string) {
	if m == nil || m.handled == nil {
		return
	}
	m.handled.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncSignatureRejected counts a delivery dropped at the signature check.
func (m *WebhookMetrics) IncSignatureRejected() {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
