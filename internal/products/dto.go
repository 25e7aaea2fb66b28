package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/money"
)

// CreateProductRequest is the admin payload for a new catalog entry.
type CreateProductRequest struct {
	Name        string         `json:"name" validate:"required,max=200"`
	Slug        string         `json:"slug" validate:"required,max=200,slug"`
	Description string         `json:"description" validate:"max=5000"`
	Price       int64          `json:"price" validate:"gte=0"`
	IsActive    *bool          `json:"isActive,omitempty"`
	CategoryIDs []uuid.UUID    `json:"categoryIds,omitempty"`
	Variants    []VariantInput `json:"variants,omitempty" validate:"omitempty,dive"`
	Images      []ImageInput   `json:"images,omitempty" validate:"omitempty,dive"`
}

// UpdateProductRequest holds optional mutations. A non-nil CategoryIDs replaces the set.
type UpdateProductRequest struct {
	Name        *string      `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Slug        *string      `json:"slug,omitempty" validate:"omitempty,min=1,max=200,slug"`
	Description *string      `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price       *int64       `json:"price,omitempty" validate:"omitempty,gte=0"`
	IsActive    *bool        `json:"isActive,omitempty"`
	CategoryIDs *[]uuid.UUID `json:"categoryIds,omitempty"`
}

// VariantInput describes a purchasable color/size combination.
type VariantInput struct {
	Color  string       `json:"color" validate:"required,max=60"`
	Size   string       `json:"size" validate:"required,max=20"`
	SKU    string       `json:"sku" validate:"required,max=64"`
	Stock  int          `json:"stock" validate:"gte=0"`
	Images []ImageInput `json:"images,omitempty" validate:"omitempty,dive"`
}

// ImageInput references an externally hosted image.
type ImageInput struct {
	URL      string  `json:"url" validate:"required,url"`
	Alt      *string `json:"alt,omitempty"`
	Position int     `json:"position" validate:"gte=0"`
}

// UpdateStockRequest sets the absolute stock of a variant.
type UpdateStockRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

// ListProductsInput narrows the public catalog listing.
type ListProductsInput struct {
	CategoryID *uuid.UUID
}

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Slug         string        `json:"slug"`
	Description  string        `json:"description"`
	Price        int64         `json:"price"`
	PriceDisplay string        `json:"priceDisplay"`
	IsActive     bool          `json:"isActive"`
	Images       []ImageDTO    `json:"images"`
	Variants     []VariantDTO  `json:"variants"`
	Categories   []CategoryRef `json:"categories"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// VariantDTO exposes a variant with its current stock.
type VariantDTO struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"productId"`
	Color     string     `json:"color"`
	Size      string     `json:"size"`
	SKU       string     `json:"sku"`
	Stock     int        `json:"stock"`
	Images    []ImageDTO `json:"images"`
}

type ImageDTO struct {
	ID        uuid.UUID  `json:"id"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	URL       string     `json:"url"`
	Alt       *string    `json:"alt,omitempty"`
	Position  int        `json:"position"`
}

type CategoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// NewProductDTO maps a product with its preloaded associations.
func NewProductDTO(product *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:           product.ID,
		Name:         product.Name,
		Slug:         product.Slug,
		Description:  product.Description,
		Price:        product.Price,
		PriceDisplay: money.Format(product.Price),
		IsActive:     product.IsActive,
		Images:       imagesToDTO(product.Images),
		Variants:     make([]VariantDTO, 0, len(product.Variants)),
		Categories:   make([]CategoryRef, 0, len(product.Categories)),
		CreatedAt:    product.CreatedAt,
		UpdatedAt:    product.UpdatedAt,
	}
	for i := range product.Variants {
		dto.Variants = append(dto.Variants, *NewVariantDTO(&product.Variants[i]))
	}
	for _, c := range product.Categories {
		dto.Categories = append(dto.Categories, CategoryRef{ID: c.ID, Name: c.Name, Slug: c.Slug})
	}
	return dto
}

// NewVariantDTO maps a single variant.
func NewVariantDTO(v *models.ProductVariant) *VariantDTO {
	return &VariantDTO{
		ID:        v.ID,
		ProductID: v.ProductID,
		Color:     v.Color,
		Size:      v.Size,
		SKU:       v.SKU,
		Stock:     v.Stock,
		Images:    imagesToDTO(v.Images),
	}
}

func imagesToDTO(images []models.ProductImage) []ImageDTO {
	out := make([]ImageDTO, len(images))
	for i, img := range images {
		out[i] = ImageDTO{
			ID:        img.ID,
			VariantID: img.VariantID,
			URL:       img.URL,
			Alt:       img.Alt,
			Position:  img.Position,
		}
	}
	return out
}
