package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

// Repository defines persistence operations for carts-to-orders conversion and order reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCartWithItems(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	LockVariants(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	DecrementStock(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	ClearCart(ctx context.Context, cartID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	FindByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
}
