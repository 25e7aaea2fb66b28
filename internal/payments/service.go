package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
)

const (
	paymentOrderConstraint  = "payments_order_id_key"
	paymentIntentConstraint = "payments_stripe_payment_intent_id_key"

	outcomeCreated = "created"
	outcomeReused  = "reused"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service issues Stripe payment intents for orders and reports their status.
type Service interface {
	CreatePaymentIntent(ctx context.Context, userID uuid.UUID, req CreatePaymentIntentRequest) (*PaymentIntentDTO, error)
	GetPaymentStatus(ctx context.Context, userID, orderID uuid.UUID) (*PaymentStatusDTO, error)
}

// StripeIntentClient is the slice of the Stripe API the service calls.
type StripeIntentClient interface {
	Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// ServiceParams bundles the payment service dependencies.
type ServiceParams struct {
	Repo     *Repository
	Tx       txRunner
	Stripe   StripeIntentClient
	Metrics  *metrics.CommerceMetrics
	Currency string
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	tx       txRunner
	stripe   StripeIntentClient
	metrics  *metrics.CommerceMetrics
	currency string
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "eur"
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		stripe:   params.Stripe,
		metrics:  params.Metrics,
		currency: currency,
		logg:     params.Logger,
	}, nil
}

// CreatePaymentIntent returns the order's existing intent or creates one. The
// order row stays locked while the payment row is checked and written.
func (s *service) CreatePaymentIntent(ctx context.Context, userID uuid.UUID, req CreatePaymentIntentRequest) (*PaymentIntentDTO, error) {
	if req.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}

	var (
		result  *PaymentIntentDTO
		outcome string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrderForUser(ctx, req.OrderID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending").
				WithDetails(map[string]any{"status": order.Status})
		}

		existing, err := repo.FindByOrderID(ctx, order.ID)
		if err == nil {
			result, err = s.retrieve(ctx, existing)
			outcome = outcomeReused
			return err
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
		}

		intent, err := s.stripe.Create(ctx, s.intentParams(order))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe payment intent")
		}
		payment := &models.Payment{
			ID:                    uuid.New(),
			OrderID:               order.ID,
			StripePaymentIntentID: intent.ID,
			Amount:                order.TotalAmount,
			Currency:              s.currency,
			Status:                enums.PaymentStatusPending,
		}
		if err := repo.Create(ctx, payment); err != nil {
			return err
		}
		result = &PaymentIntentDTO{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}
		outcome = outcomeCreated
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, paymentOrderConstraint) || db.IsUniqueViolation(err, paymentIntentConstraint) {
			return s.reuseAfterRace(ctx, userID, req.OrderID)
		}
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment")
		}
		return nil, err
	}

	s.metrics.PaymentIntent(outcome)
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), req.OrderID.String())
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"payment_intent_id": result.PaymentIntentID,
			"outcome":           outcome,
		}), "payment intent issued")
	}
	return result, nil
}

func (s *service) GetPaymentStatus(ctx context.Context, userID, orderID uuid.UUID) (*PaymentStatusDTO, error) {
	order, err := s.repo.FindOrderForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.Payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for this order")
	}
	return &PaymentStatusDTO{
		OrderID:       order.ID,
		PaymentStatus: order.Payment.Status,
		OrderStatus:   order.Status,
		Amount:        order.TotalAmount,
	}, nil
}

// reuseAfterRace serves a request that lost the insert race to a concurrent one.
func (s *service) reuseAfterRace(ctx context.Context, userID, orderID uuid.UUID) (*PaymentIntentDTO, error) {
	order, err := s.repo.FindOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order payment")
	}
	if order.Payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment missing after unique violation")
	}
	result, err := s.retrieve(ctx, order.Payment)
	if err != nil {
		return nil, err
	}
	s.metrics.PaymentIntent(outcomeReused)
	return result, nil
}

func (s *service) retrieve(ctx context.Context, payment *models.Payment) (*PaymentIntentDTO, error) {
	intent, err := s.stripe.Get(ctx, payment.StripePaymentIntentID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve stripe payment intent")
	}
	return &PaymentIntentDTO{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

func (s *service) intentParams(order *models.Order) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(order.TotalAmount),
		Currency: stripe.String(s.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("orderId", order.ID.String())
	params.AddMetadata("userId", order.UserID.String())
	params.SetIdempotencyKey(IdempotencyKey(order.ID))
	return params
}

// IdempotencyKey is the Stripe idempotency key for an order's intent.
func IdempotencyKey(orderID uuid.UUID) string {
	return "order-" + orderID.String()
}
