package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWebhookMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)

	m.IncHandled("invoice.paid", "applied")
	m.IncHandled("invoice.paid", "applied")
	m.IncHandled("", "skipped")
	m.IncSignatureRejected()
	m.ObserveDuration("invoice.paid", 25*time.Millisecond)

	if got := testutil.ToFloat64(m.handled.WithLabelValues("invoice.paid", "applied")); got != 2 {
		t.Fatalf("expected 2 applied, got %v", got)
	}
	if got := testutil.ToFloat64(m.handled.WithLabelValues("unknown", "skipped")); got != 1 {
		t.Fatalf("expected empty type normalized to unknown, got %v", got)
	}
	if got := testutil.ToFloat64(m.rejected); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
}

func TestWebhookMetricsNilSafe(t *testing.T) {
	var m *WebhookMetrics
	m.IncHandled("x", "y")
	m.IncSignatureRejected()
	m.ObserveDuration("x", time.Second)

	empty := NewWebhookMetrics(nil)
	empty.IncHandled("x", "y")
}
