package categories

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/money"
)

// CreateCategoryRequest is the admin payload for a new category.
type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Slug        string  `json:"slug" validate:"required,max=120,slug"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// UpdateCategoryRequest carries optional category mutations.
type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Slug        *string `json:"slug,omitempty" validate:"omitempty,min=1,max=120,slug"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// CategoryDTO is returned by list and detail endpoints.
type CategoryDTO struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	Slug        string              `json:"slug"`
	Description *string             `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	Products    []ProductSummaryDTO `json:"products"`
}

// ProductSummaryDTO is the slim product shape nested under a category.
type ProductSummaryDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Price        int64     `json:"price"`
	PriceDisplay string    `json:"priceDisplay"`
	Image        *ImageDTO `json:"image,omitempty"`
}

// ImageDTO is the first image of a product, by position.
type ImageDTO struct {
	ID       uuid.UUID `json:"id"`
	URL      string    `json:"url"`
	Alt      *string   `json:"alt,omitempty"`
	Position int       `json:"position"`
}

// FromModel maps a category and its preloaded products.
func FromModel(c *models.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	dto := &CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Products:    make([]ProductSummaryDTO, 0, len(c.Products)),
	}
	for _, p := range c.Products {
		summary := ProductSummaryDTO{
			ID:           p.ID,
			Name:         p.Name,
			Slug:         p.Slug,
			Price:        p.Price,
			PriceDisplay: money.Format(p.Price),
		}
		if len(p.Images) > 0 {
			img := p.Images[0]
			summary.Image = &ImageDTO{ID: img.ID, URL: img.URL, Alt: img.Alt, Position: img.Position}
		}
		dto.Products = append(dto.Products, summary)
	}
	return dto
}

func (r CreateCategoryRequest) toModel() *models.Category {
	return &models.Category{
		ID:          uuid.New(),
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
	}
}
