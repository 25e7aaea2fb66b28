package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/angelmondragon/shopfront-backend/pkg/money"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service converts carts into orders and serves the owner's order history.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
}

// ServiceParams bundles the order service dependencies.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Metrics  *metrics.CommerceMetrics
	Currency string
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	metrics  *metrics.CommerceMetrics
	currency string
	logg     *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "eur"
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		currency: currency,
		logg:     params.Logger,
	}, nil
}

// Create snapshots the cart into a PENDING order, decrements stock and empties
// the cart. Any failure rolls the whole conversion back.
func (s *service) Create(ctx context.Context, userID uuid.UUID) (*OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindCartWithItems(ctx, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if cart == nil || len(cart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
		}

		variants, err := s.lockVariants(ctx, repo, cart.Items)
		if err != nil {
			return err
		}

		order = &models.Order{
			ID:       uuid.New(),
			UserID:   userID,
			Currency: s.currency,
			Status:   enums.OrderStatusPending,
			Items:    make([]models.OrderItem, 0, len(cart.Items)),
		}
		for _, line := range cart.Items {
			variant := variants[line.VariantID]
			if variant.Stock < line.Quantity {
				return s.insufficientStock(variant, line.Quantity)
			}
			order.Items = append(order.Items, models.OrderItem{
				ID:          uuid.New(),
				OrderID:     order.ID,
				ProductName: variant.Product.Name,
				Price:       variant.Product.Price,
				Color:       variant.Color,
				Size:        variant.Size,
				Quantity:    line.Quantity,
			})
			order.TotalAmount += money.LineTotal(variant.Product.Price, line.Quantity)
		}

		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert order")
		}

		for _, line := range cart.Items {
			ok, err := repo.DecrementStock(ctx, line.VariantID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
			if !ok {
				return s.insufficientStock(variants[line.VariantID], line.Quantity)
			}
		}

		if err := repo.ClearCart(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data:          orderCreatedPayload(order),
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	s.metrics.OrderCreated(order.TotalAmount)
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), order.ID.String())
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"total_amount": order.TotalAmount,
			"line_count":   len(order.Items),
		}), "order created")
	}
	return NewOrderDTO(order), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.ListByUser(ctx, userID, pagination.LimitWithBuffer(limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	rows, next := pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	result := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		result.Orders = append(result.Orders, *NewOrderDTO(&rows[i]))
	}
	return result, nil
}

// Get returns NotFound for orders owned by someone else.
func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return NewOrderDTO(order), nil
}

// lockVariants locks every referenced variant in id order so concurrent
// checkouts acquire row locks in the same sequence.
func (s *service) lockVariants(ctx context.Context, repo Repository, items []models.CartItem) (map[uuid.UUID]*models.ProductVariant, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.VariantID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	rows, err := repo.LockVariants(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock variants")
	}
	byID := make(map[uuid.UUID]*models.ProductVariant, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	for _, id := range ids {
		variant, ok := byID[id]
		if !ok || variant.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product variant %s not found", id))
		}
		if !variant.Product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("product %s is no longer available", variant.Product.Name))
		}
	}
	return byID, nil
}

func (s *service) insufficientStock(variant *models.ProductVariant, requested int) error {
	s.metrics.InsufficientStock()
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", variant.SKU)).
		WithDetails(map[string]any{
			"variantId": variant.ID.String(),
			"sku":       variant.SKU,
			"available": variant.Stock,
			"requested": requested,
		})
}

func orderCreatedPayload(order *models.Order) payloads.OrderCreatedEvent {
	items := make([]payloads.OrderItemSnapshot, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payloads.OrderItemSnapshot{
			ProductName: item.ProductName,
			Price:       item.Price,
			Color:       item.Color,
			Size:        item.Size,
			Quantity:    item.Quantity,
		})
	}
	return payloads.OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		Items:       items,
	}
}
