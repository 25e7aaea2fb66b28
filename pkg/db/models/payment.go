package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// Payment mirrors a Stripe payment intent; one per order.
type Payment struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	StripePaymentIntentID string              `gorm:"column:stripe_payment_intent_id;not null;uniqueIndex"`
	Amount                int64               `gorm:"column:amount;not null"`
	Currency              string              `gorm:"column:currency;not null"`
	Status                enums.PaymentStatus `gorm:"column:status;type:payment_status;not null"`
	FailureReason         *string             `gorm:"column:failure_reason"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
