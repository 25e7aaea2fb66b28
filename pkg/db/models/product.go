package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry. Price is stored in minor currency units.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex"`
	Description string    `gorm:"column:description;not null"`
	Price       int64     `gorm:"column:price;not null"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Variants   []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Images     []ProductImage   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Categories []Category       `gorm:"many2many:product_categories;"`
}

// ProductVariant is a purchasable color/size combination with its own stock.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Color     string    `gorm:"column:color;not null"`
	Size      string    `gorm:"column:size;not null"`
	SKU       string    `gorm:"column:sku;not null;uniqueIndex"`
	Stock     int       `gorm:"column:stock;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Product *Product       `gorm:"foreignKey:ProductID"`
	Images  []ProductImage `gorm:"foreignKey:VariantID"`
}

// ProductImage is ordered by Position; VariantID is set for variant-specific shots.
type ProductImage struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	URL       string     `gorm:"column:url;not null"`
	Alt       *string    `gorm:"column:alt"`
	Position  int        `gorm:"column:position;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
