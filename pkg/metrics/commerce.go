package metrics

import "github.com/prometheus/client_golang/prometheus"

// CommerceMetrics counts order, payment and webhook outcomes.
type CommerceMetrics struct {
	ordersCreated   prometheus.Counter
	orderAmount     prometheus.Counter
	paymentIntents  *prometheus.CounterVec
	paymentOutcomes *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	stockRejections prometheus.Counter
}

// NewCommerceMetrics registers the commerce metrics on the provided registerer.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	m := &CommerceMetrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Orders created from carts.",
		}),
		orderAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_order_amount_cents_total",
			Help: "Sum of order totals in minor currency units.",
		}),
		paymentIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_payment_intents_total",
			Help: "Payment intent requests by outcome (created, reused).",
		}, []string{"outcome"}),
		paymentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_payments_total",
			Help: "Payment status transitions applied from webhooks.",
		}, []string{"status"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_webhook_events_total",
			Help: "Stripe webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		stockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_insufficient_stock_total",
			Help: "Cart or order operations rejected for insufficient stock.",
		}),
	}
	reg.MustRegister(m.ordersCreated, m.orderAmount, m.paymentIntents, m.paymentOutcomes, m.webhookEvents, m.stockRejections)
	return m
}

func (m *CommerceMetrics) OrderCreated(totalAmount int64) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
	if totalAmount > 0 {
		m.orderAmount.Add(float64(totalAmount))
	}
}

func (m *CommerceMetrics) PaymentIntent(outcome string) {
	if m == nil || m.paymentIntents == nil {
		return
	}
	m.paymentIntents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CommerceMetrics) PaymentStatus(status string) {
	if m == nil || m.paymentOutcomes == nil {
		return
	}
	m.paymentOutcomes.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *CommerceMetrics) WebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *CommerceMetrics) InsufficientStock() {
	if m == nil || m.stockRejections == nil {
		return
	}
	m.stockRejections.Inc()
}
