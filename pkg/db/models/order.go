package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// Order is an immutable snapshot of a cart at checkout time.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	TotalAmount int64             `gorm:"column:total_amount;not null"`
	Currency    string            `gorm:"column:currency;not null"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items   []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment *Payment    `gorm:"foreignKey:OrderID"`
}

// OrderItem copies product details so later catalog edits leave history intact.
type OrderItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductName string    `gorm:"column:product_name;not null"`
	Price       int64     `gorm:"column:price;not null"`
	Color       string    `gorm:"column:color;not null"`
	Size        string    `gorm:"column:size;not null"`
	Quantity    int       `gorm:"column:quantity;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
