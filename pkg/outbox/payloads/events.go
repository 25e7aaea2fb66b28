package payloads

import (
	"github.com/google/uuid"
)

// OrderItemSnapshot mirrors a frozen order line.
type OrderItemSnapshot struct {
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"`
	Color       string `json:"color"`
	Size        string `json:"size"`
	Quantity    int    `json:"quantity"`
}

// OrderCreatedEvent is emitted when a cart is converted into an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	UserID      uuid.UUID           `json:"user_id"`
	TotalAmount int64               `json:"total_amount"`
	Currency    string              `json:"currency"`
	Items       []OrderItemSnapshot `json:"items"`
}

// OrderPaidEvent is emitted once Stripe confirms the payment intent.
type OrderPaidEvent struct {
	OrderID               uuid.UUID `json:"order_id"`
	UserID                uuid.UUID `json:"user_id"`
	PaymentID             uuid.UUID `json:"payment_id"`
	StripePaymentIntentID string    `json:"stripe_payment_intent_id"`
	Amount                int64     `json:"amount"`
	Currency              string    `json:"currency"`
}

// PaymentFailedEvent is emitted when Stripe reports a failed attempt.
type PaymentFailedEvent struct {
	PaymentID             uuid.UUID `json:"payment_id"`
	OrderID               uuid.UUID `json:"order_id"`
	StripePaymentIntentID string    `json:"stripe_payment_intent_id"`
	FailureReason         string    `json:"failure_reason,omitempty"`
}
