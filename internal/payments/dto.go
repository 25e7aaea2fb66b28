package payments

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// CreatePaymentIntentRequest identifies the order to pay.
type CreatePaymentIntentRequest struct {
	OrderID uuid.UUID `json:"orderId" validate:"required"`
}

// PaymentIntentDTO is what the storefront needs to confirm the payment client-side.
type PaymentIntentDTO struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// PaymentStatusDTO reports the local mirror of an order's payment.
type PaymentStatusDTO struct {
	OrderID       uuid.UUID           `json:"orderId"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	OrderStatus   enums.OrderStatus   `json:"orderStatus"`
	Amount        int64               `json:"amount"`
}
