package metrics

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramOf(t *testing.T, obs prometheus.Observer) *dto.Histogram {
	t.Helper()
	metric, ok := obs.(prometheus.Metric)
	require.True(t, ok)
	var out dto.Metric
	require.NoError(t, metric.Write(&out))
	return out.GetHistogram()
}

func TestWorkerMetrics(t *testing.T) {
	m := NewWorkerMetrics(prometheus.NewRegistry())
	m.ObserveBatch("outbox-publisher", 250*time.Millisecond)
	m.IncPublished("outbox-publisher", "order_created")
	m.IncPublished("outbox-publisher", "order_created")
	m.IncFailed("outbox-publisher", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.published.WithLabelValues("outbox-publisher", "order_created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failed.WithLabelValues("outbox-publisher", "unknown")))

	batch := histogramOf(t, m.duration.WithLabelValues("outbox-publisher"))
	assert.EqualValues(t, 1, batch.GetSampleCount())
	assert.InDelta(t, 0.25, batch.GetSampleSum(), 1e-9)
}

func TestHTTPMetricsLabelsUnmatchedRoutes(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())
	m.Observe(http.MethodPost, "/api/orders", http.StatusCreated, 10*time.Millisecond)
	m.Observe(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodPost, "/api/orders", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "unknown", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.latency))
}

func TestCommerceMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCommerceMetrics(reg)
	m.OrderCreated(10997)
	m.OrderCreated(0)
	m.PaymentIntent("reused")
	m.PaymentStatus("SUCCEEDED")
	m.WebhookEvent("payment_intent.succeeded", "processed")
	m.InsufficientStock()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, 10997.0, testutil.ToFloat64(m.orderAmount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockRejections))

	expected := `
# HELP shop_webhook_events_total Stripe webhook events by type and outcome.
# TYPE shop_webhook_events_total counter
shop_webhook_events_total{type="payment_intent.succeeded",outcome="processed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "shop_webhook_events_total"))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var commerce *CommerceMetrics
	commerce.OrderCreated(1)
	commerce.WebhookEvent("x", "y")
	NewCommerceMetrics(nil).PaymentStatus("FAILED")
	NewHTTPMetrics(nil).Observe(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	NewWorkerMetrics(nil).IncPublished("w", "e")
}
