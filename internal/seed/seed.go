// Package seed loads the admin account and demo catalog. Every row is keyed
// by its natural unique column, so running it twice leaves one copy.
package seed

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopfront-backend/internal/users"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Summary counts the rows the seed touched.
type Summary struct {
	Categories int
	Products   int
	Variants   int
}

type Seeder struct {
	tx          txRunner
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

func New(tx txRunner, passwordCfg config.PasswordConfig, logg *logger.Logger) *Seeder {
	return &Seeder{tx: tx, passwordCfg: passwordCfg, logg: logg}
}

// Run upserts the admin user, categories, products and variants in one transaction.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	hash, err := security.HashPassword(AdminPassword, s.passwordCfg)
	if err != nil {
		return summary, fmt.Errorf("hash admin password: %w", err)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		admin, err := users.NewRepository(tx).UpsertByEmail(ctx, users.CreateUserDTO{
			Email:        AdminEmail,
			PasswordHash: hash,
			Role:         enums.RoleAdmin,
		})
		if err != nil {
			return fmt.Errorf("upsert admin: %w", err)
		}
		s.info(ctx, "admin ready", "email", admin.Email)

		categoryIDs := make(map[string]uuid.UUID, len(categories))
		for _, c := range categories {
			id, err := upsertCategory(ctx, tx, c)
			if err != nil {
				return err
			}
			categoryIDs[c.Slug] = id
			summary.Categories++
		}

		for _, p := range products {
			categoryID, ok := categoryIDs[p.CategorySlug]
			if !ok {
				return fmt.Errorf("product %s references unknown category %s", p.Slug, p.CategorySlug)
			}
			productID, err := upsertProduct(ctx, tx, p, categoryID)
			if err != nil {
				return err
			}
			summary.Products++
			for _, v := range p.Variants {
				if err := upsertVariant(ctx, tx, productID, v); err != nil {
					return err
				}
				summary.Variants++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	s.info(ctx, "seed complete", "products", summary.Products)
	return summary, nil
}

func upsertCategory(ctx context.Context, tx *gorm.DB, c categorySeed) (uuid.UUID, error) {
	row := models.Category{ID: uuid.New(), Name: c.Name, Slug: c.Slug}
	err := tx.WithContext(ctx).
		Omit("Products").
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert category %s: %w", c.Slug, err)
	}
	var stored models.Category
	if err := tx.WithContext(ctx).Select("id").Where("slug = ?", c.Slug).First(&stored).Error; err != nil {
		return uuid.Nil, fmt.Errorf("load category %s: %w", c.Slug, err)
	}
	return stored.ID, nil
}

func upsertProduct(ctx context.Context, tx *gorm.DB, p productSeed, categoryID uuid.UUID) (uuid.UUID, error) {
	row := models.Product{
		ID:          uuid.New(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       p.Price,
		IsActive:    true,
	}
	err := tx.WithContext(ctx).
		Omit("Variants", "Images", "Categories").
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert product %s: %w", p.Slug, err)
	}
	var stored models.Product
	if err := tx.WithContext(ctx).Select("id").Where("slug = ?", p.Slug).First(&stored).Error; err != nil {
		return uuid.Nil, fmt.Errorf("load product %s: %w", p.Slug, err)
	}

	err = tx.WithContext(ctx).
		Table("product_categories").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(map[string]any{"product_id": stored.ID, "category_id": categoryID}).Error
	if err != nil {
		return uuid.Nil, fmt.Errorf("link product %s: %w", p.Slug, err)
	}
	return stored.ID, nil
}

func upsertVariant(ctx context.Context, tx *gorm.DB, productID uuid.UUID, v variantSeed) error {
	row := models.ProductVariant{
		ID:        uuid.New(),
		ProductID: productID,
		Color:     v.Color,
		Size:      v.Size,
		SKU:       v.SKU,
		Stock:     v.Stock,
	}
	err := tx.WithContext(ctx).
		Omit("Product", "Images").
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sku"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert variant %s: %w", v.SKU, err)
	}
	return nil
}

func (s *Seeder) info(ctx context.Context, msg, key string, value any) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, key, value), msg)
}
