package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	"github.com/angelmondragon/shopfront-backend/pkg/money"
)

// OrderDTO is the immutable order snapshot returned to its owner.
type OrderDTO struct {
	ID                 uuid.UUID         `json:"id"`
	UserID             uuid.UUID         `json:"userId"`
	Status             enums.OrderStatus `json:"status"`
	TotalAmount        int64             `json:"totalAmount"`
	TotalAmountDisplay string            `json:"totalAmountDisplay"`
	Currency           string            `json:"currency"`
	Items              []OrderItemDTO    `json:"items"`
	Payment            *PaymentDTO       `json:"payment,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

type OrderItemDTO struct {
	ID           uuid.UUID `json:"id"`
	ProductName  string    `json:"productName"`
	Price        int64     `json:"price"`
	PriceDisplay string    `json:"priceDisplay"`
	Color        string    `json:"color"`
	Size         string    `json:"size"`
	Quantity     int       `json:"quantity"`
	LineTotal    int64     `json:"lineTotal"`
}

type PaymentDTO struct {
	ID                    uuid.UUID           `json:"id"`
	StripePaymentIntentID string              `json:"stripePaymentIntentId"`
	Amount                int64               `json:"amount"`
	Currency              string              `json:"currency"`
	Status                enums.PaymentStatus `json:"status"`
	FailureReason         *string             `json:"failureReason,omitempty"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`
}

// OrderList is one page of a user's orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// NewOrderDTO maps the persisted order and its preloaded items and payment.
func NewOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:                 order.ID,
		UserID:             order.UserID,
		Status:             order.Status,
		TotalAmount:        order.TotalAmount,
		TotalAmountDisplay: money.Display(order.TotalAmount, order.Currency),
		Currency:           order.Currency,
		Items:              make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:           item.ID,
			ProductName:  item.ProductName,
			Price:        item.Price,
			PriceDisplay: money.Format(item.Price),
			Color:        item.Color,
			Size:         item.Size,
			Quantity:     item.Quantity,
			LineTotal:    money.LineTotal(item.Price, item.Quantity),
		})
	}
	if p := order.Payment; p != nil {
		dto.Payment = &PaymentDTO{
			ID:                    p.ID,
			StripePaymentIntentID: p.StripePaymentIntentID,
			Amount:                p.Amount,
			Currency:              p.Currency,
			Status:                p.Status,
			FailureReason:         p.FailureReason,
			CreatedAt:             p.CreatedAt,
			UpdatedAt:             p.UpdatedAt,
		}
	}
	return dto
}
