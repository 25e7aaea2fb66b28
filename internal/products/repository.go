package products

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

// Repository wires together product, variant, image and category-link persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

type productCategory struct {
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	CategoryID uuid.UUID `gorm:"column:category_id;type:uuid;primaryKey"`
}

func (productCategory) TableName() string { return "product_categories" }

// ListActive returns active products, newest first, with their associations.
func (r *Repository) ListActive(ctx context.Context, categoryID *uuid.UUID) ([]models.Product, error) {
	query := r.withAssociations(ctx).Where("products.is_active = ?", true)
	if categoryID != nil {
		query = query.Where(
			"products.id IN (SELECT product_id FROM product_categories WHERE category_id = ?)", *categoryID,
		)
	}
	var rows []models.Product
	if err := query.Order("products.created_at DESC").Order("products.id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetDetail loads a product, active or not, with its associations.
func (r *Repository) GetDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.withAssociations(ctx).First(&product, "products.id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// SlugOwner returns the product id that holds the slug.
func (r *Repository) SlugOwner(ctx context.Context, slug string) (uuid.UUID, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Select("id").Where("slug = ?", slug).First(&product).Error; err != nil {
		return uuid.Nil, err
	}
	return product.ID, nil
}

// ExistingSKUs returns which of the provided SKUs are already taken.
func (r *Repository) ExistingSKUs(ctx context.Context, skus []string) ([]string, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	var taken []string
	err := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("sku IN ?", skus).
		Pluck("sku", &taken).Error
	return taken, err
}

// CountCategories reports how many of the ids resolve to a category.
func (r *Repository) CountCategories(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Category{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

// CreateProduct inserts the product row only.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Variants", "Images", "Categories").Create(product).Error
}

func (r *Repository) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Omit("Product", "Images").Create(variant).Error
}

func (r *Repository) CreateImages(ctx context.Context, images []models.ProductImage) error {
	if len(images) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&images).Error
}

// ReplaceCategories swaps the category links of a product for the provided set.
func (r *Repository) ReplaceCategories(ctx context.Context, productID uuid.UUID, categoryIDs []uuid.UUID) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("product_id = ?", productID).Delete(&productCategory{}).Error; err != nil {
		return err
	}
	if len(categoryIDs) == 0 {
		return nil
	}
	links := make([]productCategory, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		links = append(links, productCategory{ProductID: productID, CategoryID: id})
	}
	return conn.Create(&links).Error
}

// UpdateProduct writes the mutable product columns.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"name":        product.Name,
			"slug":        product.Slug,
			"description": product.Description,
			"price":       product.Price,
			"is_active":   product.IsActive,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// DeleteProduct removes the product with its variants, images, category links
// and any cart lines pointing at its variants.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	conn := r.db.WithContext(ctx)
	variantIDs := conn.Model(&models.ProductVariant{}).Select("id").Where("product_id = ?", id)
	if err := conn.Where("variant_id IN (?)", variantIDs).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if err := conn.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
		return err
	}
	if err := conn.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
		return err
	}
	if err := conn.Where("product_id = ?", id).Delete(&productCategory{}).Error; err != nil {
		return err
	}
	res := conn.Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindVariant loads a variant with its product.
func (r *Repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&variant, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// SetVariantStock overwrites the stock counter. It reports gorm.ErrRecordNotFound when no row matched.
func (r *Repository) SetVariantStock(ctx context.Context, id uuid.UUID, stock int) error {
	res := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", id).
		Updates(map[string]any{"stock": stock, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) withAssociations(ctx context.Context) *gorm.DB {
	byPosition := func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }
	return r.db.WithContext(ctx).
		Preload("Images", byPosition).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("sku ASC") }).
		Preload("Variants.Images", byPosition).
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") })
}
