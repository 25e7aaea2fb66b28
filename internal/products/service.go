package products

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

const (
	slugConstraint = "products_slug_key"
	skuConstraint  = "product_variants_sku_key"
)

// Service exposes the public catalog and the admin product/inventory operations.
type Service interface {
	List(ctx context.Context, input ListProductsInput) ([]ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, req CreateProductRequest) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddVariant(ctx context.Context, productID uuid.UUID, input VariantInput) (*VariantDTO, error)
	UpdateVariantStock(ctx context.Context, variantID uuid.UUID, stock int) (*VariantDTO, error)
}

type service struct {
	repo *Repository
	tx   db.TxRunner
	logg *logger.Logger
}

// NewService constructs a product service instance.
func NewService(repo *Repository, tx db.TxRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) List(ctx context.Context, input ListProductsInput) ([]ProductDTO, error) {
	rows, err := s.repo.ListActive(ctx, input.CategoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return NewProductDTO(product), nil
}

// Create inserts the product with its variants, images and category links in one transaction.
func (s *service) Create(ctx context.Context, req CreateProductRequest) (*ProductDTO, error) {
	name := strings.TrimSpace(req.Name)
	slug := strings.TrimSpace(req.Slug)
	if name == "" || slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and slug are required")
	}
	if req.Price < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if err := validateVariants(req.Variants); err != nil {
		return nil, err
	}
	categoryIDs := uniqueIDs(req.CategoryIDs)

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	product := &models.Product{
		ID:          uuid.New(),
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		IsActive:    isActive,
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if _, err := txRepo.SlugOwner(ctx, slug); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "product slug already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check product slug")
		}
		if err := ensureSKUsFree(ctx, txRepo, req.Variants); err != nil {
			return err
		}
		if err := ensureCategoriesExist(ctx, txRepo, categoryIDs); err != nil {
			return err
		}

		if err := txRepo.CreateProduct(ctx, product); err != nil {
			return translateWriteErr(err, "insert product")
		}
		if err := txRepo.ReplaceCategories(ctx, product.ID, categoryIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link categories")
		}
		if err := txRepo.CreateImages(ctx, buildImages(product.ID, nil, req.Images)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert images")
		}
		for _, input := range req.Variants {
			if _, err := createVariant(ctx, txRepo, product.ID, input); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID.String(),
			"variants":   len(req.Variants),
		}), "product created")
	}
	return s.Get(ctx, product.ID)
}

// Update applies a partial mutation; a non-nil CategoryIDs replaces every link.
func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductDTO, error) {
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product, err := txRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}

		if req.Slug != nil {
			slug := strings.TrimSpace(*req.Slug)
			owner, err := txRepo.SlugOwner(ctx, slug)
			switch {
			case err == nil && owner != id:
				return pkgerrors.New(pkgerrors.CodeConflict, "product slug already exists")
			case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check product slug")
			}
		}
		if err := applyUpdate(product, req); err != nil {
			return err
		}
		if err := txRepo.UpdateProduct(ctx, product); err != nil {
			return translateWriteErr(err, "update product")
		}

		if req.CategoryIDs != nil {
			categoryIDs := uniqueIDs(*req.CategoryIDs)
			if err := ensureCategoriesExist(ctx, txRepo, categoryIDs); err != nil {
				return err
			}
			if err := txRepo.ReplaceCategories(ctx, id, categoryIDs); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replace categories")
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes the product along with variants, images and category links.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).DeleteProduct(ctx, id)
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "product_id", id.String()), "product deleted")
	}
	return nil
}

func (s *service) AddVariant(ctx context.Context, productID uuid.UUID, input VariantInput) (*VariantDTO, error) {
	if err := validateVariants([]VariantInput{input}); err != nil {
		return nil, err
	}

	var variantID uuid.UUID
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindByID(ctx, productID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		if err := ensureSKUsFree(ctx, txRepo, []VariantInput{input}); err != nil {
			return err
		}
		variant, err := createVariant(ctx, txRepo, productID, input)
		if err != nil {
			return err
		}
		variantID = variant.ID
		return nil
	}); err != nil {
		return nil, err
	}
	return s.loadVariant(ctx, variantID)
}

// UpdateVariantStock sets an absolute stock level; the CHECK constraint backs the non-negative rule.
func (s *service) UpdateVariantStock(ctx context.Context, variantID uuid.UUID, stock int) (*VariantDTO, error) {
	if stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must be non-negative")
	}
	if err := s.repo.SetVariantStock(ctx, variantID, stock); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("variant %s not found", variantID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update variant stock")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"variant_id": variantID.String(),
			"stock":      stock,
		}), "variant stock updated")
	}
	return s.loadVariant(ctx, variantID)
}

func (s *service) loadVariant(ctx context.Context, id uuid.UUID) (*VariantDTO, error) {
	variant, err := s.repo.FindVariant(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("variant %s not found", id))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
	}
	return NewVariantDTO(variant), nil
}

func createVariant(ctx context.Context, repo *Repository, productID uuid.UUID, input VariantInput) (*models.ProductVariant, error) {
	variant := &models.ProductVariant{
		ID:        uuid.New(),
		ProductID: productID,
		Color:     strings.TrimSpace(input.Color),
		Size:      strings.TrimSpace(input.Size),
		SKU:       strings.TrimSpace(input.SKU),
		Stock:     input.Stock,
	}
	if err := repo.CreateVariant(ctx, variant); err != nil {
		return nil, translateWriteErr(err, "insert variant")
	}
	variantID := variant.ID
	if err := repo.CreateImages(ctx, buildImages(productID, &variantID, input.Images)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert variant images")
	}
	return variant, nil
}

func ensureSKUsFree(ctx context.Context, repo *Repository, variants []VariantInput) error {
	skus := make([]string, 0, len(variants))
	for _, v := range variants {
		skus = append(skus, strings.TrimSpace(v.SKU))
	}
	taken, err := repo.ExistingSKUs(ctx, skus)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check variant skus")
	}
	if len(taken) > 0 {
		sort.Strings(taken)
		return pkgerrors.New(pkgerrors.CodeConflict, "variant sku already exists").
			WithDetails(map[string]any{"skus": taken})
	}
	return nil
}

func ensureCategoriesExist(ctx context.Context, repo *Repository, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	count, err := repo.CountCategories(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check categories")
	}
	if count != int64(len(ids)) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "one or more categories not found")
	}
	return nil
}

func validateVariants(variants []VariantInput) error {
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		sku := strings.TrimSpace(v.SKU)
		if sku == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant sku is required")
		}
		if strings.TrimSpace(v.Color) == "" || strings.TrimSpace(v.Size) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant color and size are required")
		}
		if v.Stock < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant stock must be non-negative")
		}
		if _, ok := seen[sku]; ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate variant sku")
		}
		seen[sku] = struct{}{}
	}
	return nil
}

func applyUpdate(product *models.Product, req UpdateProductRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		product.Name = name
	}
	if req.Slug != nil {
		slug := strings.TrimSpace(*req.Slug)
		if slug == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "slug cannot be empty")
		}
		product.Slug = slug
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
		}
		product.Price = *req.Price
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	return nil
}

func buildImages(productID uuid.UUID, variantID *uuid.UUID, inputs []ImageInput) []models.ProductImage {
	images := make([]models.ProductImage, 0, len(inputs))
	for _, in := range inputs {
		images = append(images, models.ProductImage{
			ID:        uuid.New(),
			ProductID: productID,
			VariantID: variantID,
			URL:       strings.TrimSpace(in.URL),
			Alt:       in.Alt,
			Position:  in.Position,
		})
	}
	return images
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func translateWriteErr(err error, action string) error {
	switch {
	case db.IsUniqueViolation(err, slugConstraint):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product slug already exists")
	case db.IsUniqueViolation(err, skuConstraint):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "variant sku already exists")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
	}
}
