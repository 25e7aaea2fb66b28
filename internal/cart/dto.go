package cart

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/money"
)

// AddItemRequest adds a variant to the caller's cart, merging with an existing line.
type AddItemRequest struct {
	VariantID uuid.UUID `json:"variantId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// UpdateItemRequest sets the absolute quantity of a line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// CartDTO is the cart with totals derived from current product prices.
type CartDTO struct {
	ID                 uuid.UUID     `json:"id"`
	UserID             uuid.UUID     `json:"userId"`
	Items              []CartItemDTO `json:"items"`
	TotalAmount        int64         `json:"totalAmount"`
	TotalAmountDisplay string        `json:"totalAmountDisplay"`
	TotalItems         int           `json:"totalItems"`
	Currency           string        `json:"currency"`
}

type CartItemDTO struct {
	ID               uuid.UUID      `json:"id"`
	VariantID        uuid.UUID      `json:"variantId"`
	Quantity         int            `json:"quantity"`
	LineTotal        int64          `json:"lineTotal"`
	LineTotalDisplay string         `json:"lineTotalDisplay"`
	Variant          VariantSummary `json:"variant"`
}

type VariantSummary struct {
	ID       uuid.UUID      `json:"id"`
	Color    string         `json:"color"`
	Size     string         `json:"size"`
	SKU      string         `json:"sku"`
	Stock    int            `json:"stock"`
	ImageURL *string        `json:"imageUrl,omitempty"`
	Product  ProductSummary `json:"product"`
}

type ProductSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Slug  string    `json:"slug"`
	Price int64     `json:"price"`
}

// NewCartDTO computes line and cart totals from the preloaded variants.
func NewCartDTO(cart *models.Cart, currency string) *CartDTO {
	dto := &CartDTO{
		ID:       cart.ID,
		UserID:   cart.UserID,
		Items:    make([]CartItemDTO, 0, len(cart.Items)),
		Currency: strings.ToLower(currency),
	}
	for _, item := range cart.Items {
		line := CartItemDTO{
			ID:        item.ID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
		if v := item.Variant; v != nil {
			line.Variant = VariantSummary{
				ID:    v.ID,
				Color: v.Color,
				Size:  v.Size,
				SKU:   v.SKU,
				Stock: v.Stock,
			}
			if len(v.Images) > 0 {
				url := v.Images[0].URL
				line.Variant.ImageURL = &url
			}
			if p := v.Product; p != nil {
				line.Variant.Product = ProductSummary{ID: p.ID, Name: p.Name, Slug: p.Slug, Price: p.Price}
				line.LineTotal = money.LineTotal(p.Price, item.Quantity)
			}
		}
		line.LineTotalDisplay = money.Format(line.LineTotal)

		dto.TotalAmount += line.LineTotal
		dto.TotalItems += item.Quantity
		dto.Items = append(dto.Items, line)
	}
	dto.TotalAmountDisplay = money.Format(dto.TotalAmount)
	return dto
}
