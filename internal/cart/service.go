package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
)

// Service manages the per-user cart.
type Service interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartDTO, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, req UpdateItemRequest) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
}

// ServiceParams bundles the cart service dependencies.
type ServiceParams struct {
	Repo     CartRepository
	Tx       txRunner
	Metrics  *metrics.CommerceMetrics
	Currency string
	Logger   *logger.Logger
}

type service struct {
	repo     CartRepository
	tx       txRunner
	metrics  *metrics.CommerceMetrics
	currency string
	logg     *logger.Logger
}

// NewService constructs the cart service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	currency := params.Currency
	if currency == "" {
		currency = "eur"
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		metrics:  params.Metrics,
		currency: currency,
		logg:     params.Logger,
	}, nil
}

func (s *service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if _, err = s.repo.Ensure(ctx, userID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
		}
		cart, err = s.repo.FindByUser(ctx, userID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return NewCartDTO(cart, s.currency), nil
}

// AddItem merges the quantity into an existing line for the variant; the stock
// check covers the merged total.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartDTO, error) {
	if req.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if req.VariantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variantId is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		variant, err := repo.FindVariant(ctx, req.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
		}
		if variant.Product == nil || !variant.Product.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "product is not available")
		}

		cart, err := repo.Ensure(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure cart")
		}

		existing, err := repo.FindItemByVariant(ctx, cart.ID, variant.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}

		requested := req.Quantity
		if existing != nil {
			requested += existing.Quantity
		}
		if variant.Stock < requested {
			return s.insufficientStock(variant, requested)
		}

		if existing != nil {
			if err := repo.UpdateItemQuantity(ctx, existing.ID, requested); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
			}
			return nil
		}
		item := &models.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			VariantID: variant.ID,
			Quantity:  requested,
		}
		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrCreate(ctx, userID)
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, req UpdateItemRequest) (*CartDTO, error) {
	if req.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.ownedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}
		if item.Variant == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		if item.Variant.Stock < req.Quantity {
			return s.insufficientStock(item.Variant, req.Quantity)
		}
		if err := repo.UpdateItemQuantity(ctx, item.ID, req.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrCreate(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.ownedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrCreate(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.Ensure(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure cart")
		}
		if err := repo.ClearItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Debug(s.logg.WithUserID(ctx, userID.String()), "cart cleared")
	}
	return s.GetOrCreate(ctx, userID)
}

func (s *service) ownedItem(ctx context.Context, repo CartRepository, userID, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := repo.FindOwnedItem(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}
	return item, nil
}

func (s *service) insufficientStock(variant *models.ProductVariant, requested int) error {
	s.metrics.InsufficientStock()
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d items available in stock", variant.Stock)).
		WithDetails(map[string]any{
			"variantId": variant.ID.String(),
			"sku":       variant.SKU,
			"available": variant.Stock,
			"requested": requested,
		})
}
