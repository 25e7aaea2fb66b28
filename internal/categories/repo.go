package categories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

// Repository persists categories and reads their active products.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// List loads every category with its active products.
func (r *Repository) List(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).
		Preload("Products", "is_active = ?", true).
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID loads a category with active products and their images in position order.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.withProducts(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// FindBySlug is FindByID keyed by slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.withProducts(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// FindIDBySlug returns the id owning the slug without loading associations.
func (r *Repository) FindIDBySlug(ctx context.Context, slug string) (uuid.UUID, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Select("id").Where("slug = ?", slug).First(&category).Error; err != nil {
		return uuid.Nil, err
	}
	return category.ID, nil
}

func (r *Repository) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Omit("Products").Create(category).Error
}

// Update writes the mutable columns of an existing category.
func (r *Repository) Update(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", category.ID).
		Updates(map[string]any{
			"name":        category.Name,
			"slug":        category.Slug,
			"description": category.Description,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// Delete removes the category and its product links. It reports gorm.ErrRecordNotFound when nothing matched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Exec("DELETE FROM product_categories WHERE category_id = ?", id).Error; err != nil {
		return err
	}
	res := conn.Delete(&models.Category{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) withProducts(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Products", "is_active = ?", true).
		Preload("Products.Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
}
