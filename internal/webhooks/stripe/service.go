package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/internal/payments"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox/payloads"
)

// Dispatch outcomes reported to metrics.
const (
	OutcomeApplied        = "applied"
	OutcomeNoop           = "noop"
	OutcomeUnknownPayment = "unknown_payment"
	OutcomeIgnored        = "ignored"
	OutcomeMalformed      = "malformed"
	OutcomeError          = "error"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	Payments          *payments.Repository
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Metrics           *metrics.CommerceMetrics
	Logger            *logger.Logger
}

// Service applies verified Stripe payment intent events to local payments and orders.
type Service struct {
	payments *payments.Repository
	txRunner txRunner
	outbox   outboxPublisher
	metrics  *metrics.CommerceMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	return &Service{
		payments: params.Payments,
		txRunner: params.TransactionRunner,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// HandleEvent dispatches on the event type. Event types other than payment
// intent success and failure are acknowledged without side effects.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": eventType})
	}

	var (
		outcome string
		err     error
	)
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		outcome, err = s.withIntent(ctx, event, s.applySucceeded)
	case stripe.EventTypePaymentIntentPaymentFailed:
		outcome, err = s.withIntent(ctx, event, s.applyFailed)
	default:
		outcome = OutcomeIgnored
		if s.logg != nil {
			s.logg.Debug(ctx, "unhandled stripe event type")
		}
	}
	if err != nil {
		s.metrics.WebhookEvent(eventType, OutcomeError)
		return err
	}
	s.metrics.WebhookEvent(eventType, outcome)
	return nil
}

// withIntent decodes the event's payment intent and applies it. A signed event
// whose object cannot be used is logged and acknowledged.
func (s *Service) withIntent(ctx context.Context, event *stripe.Event, apply func(context.Context, *stripe.PaymentIntent) (string, error)) (string, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		s.warnMalformed(ctx, err.Error())
		return OutcomeMalformed, nil
	}
	if intent.ID == "" {
		s.warnMalformed(ctx, "payment intent id missing")
		return OutcomeMalformed, nil
	}
	if s.logg != nil {
		ctx = s.logg.WithField(ctx, "payment_intent_id", intent.ID)
	}
	return apply(ctx, &intent)
}

func (s *Service) warnMalformed(ctx context.Context, reason string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "stripe event object unusable, acknowledging")
}

// applySucceeded marks the payment SUCCEEDED and its order PAID in one transaction.
func (s *Service) applySucceeded(ctx context.Context, intent *stripe.PaymentIntent) (string, error) {
	var (
		outcome string
		orderID string
	)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.payments.WithTx(tx)
		payment, err := s.lockPayment(ctx, repo, intent.ID)
		if err != nil || payment == nil {
			outcome = OutcomeUnknownPayment
			return err
		}
		orderID = payment.OrderID.String()

		order, err := repo.FindOrder(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if payment.Status == enums.PaymentStatusSucceeded && order.Status == enums.OrderStatusPaid {
			outcome = OutcomeNoop
			return nil
		}
		if payment.Status != enums.PaymentStatusSucceeded {
			if !payment.Status.CanTransitionTo(enums.PaymentStatusSucceeded) {
				outcome = OutcomeNoop
				return nil
			}
			if err := repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusSucceeded, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment succeeded")
			}
		}
		if err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}

		outcome = OutcomeApplied
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID},
			Data: payloads.OrderPaidEvent{
				OrderID:               order.ID,
				UserID:                order.UserID,
				PaymentID:             payment.ID,
				StripePaymentIntentID: payment.StripePaymentIntentID,
				Amount:                payment.Amount,
				Currency:              payment.Currency,
			},
		})
	})
	if err != nil {
		return "", wrapDispatchErr(err, "apply payment succeeded")
	}
	if outcome == OutcomeApplied {
		s.metrics.PaymentStatus(strings.ToLower(enums.PaymentStatusSucceeded.String()))
	}
	s.logOutcome(ctx, outcome, orderID, "payment succeeded")
	return outcome, nil
}

// applyFailed records a failed attempt on a PENDING payment. The order stays
// PENDING so the customer can retry with the same intent.
func (s *Service) applyFailed(ctx context.Context, intent *stripe.PaymentIntent) (string, error) {
	var (
		outcome string
		orderID string
	)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.payments.WithTx(tx)
		payment, err := s.lockPayment(ctx, repo, intent.ID)
		if err != nil || payment == nil {
			outcome = OutcomeUnknownPayment
			return err
		}
		orderID = payment.OrderID.String()
		if payment.Status != enums.PaymentStatusPending {
			outcome = OutcomeNoop
			return nil
		}

		reason := failureReason(intent)
		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		if err := repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusFailed, reasonPtr); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment failed")
		}

		outcome = OutcomeApplied
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentFailedEvent{
				PaymentID:             payment.ID,
				OrderID:               payment.OrderID,
				StripePaymentIntentID: payment.StripePaymentIntentID,
				FailureReason:         reason,
			},
		})
	})
	if err != nil {
		return "", wrapDispatchErr(err, "apply payment failed")
	}
	if outcome == OutcomeApplied {
		s.metrics.PaymentStatus(strings.ToLower(enums.PaymentStatusFailed.String()))
	}
	s.logOutcome(ctx, outcome, orderID, "payment failed")
	return outcome, nil
}

// lockPayment returns a nil payment without error when no row mirrors the intent.
func (s *Service) lockPayment(ctx context.Context, repo *payments.Repository, intentID string) (*models.Payment, error) {
	payment, err := repo.LockByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	return payment, nil
}

func (s *Service) logOutcome(ctx context.Context, outcome, orderID, milestone string) {
	if s.logg == nil {
		return
	}
	if orderID != "" {
		ctx = s.logg.WithOrderID(ctx, orderID)
	}
	switch outcome {
	case OutcomeUnknownPayment:
		s.logg.Warn(ctx, "payment not found for stripe payment intent")
	case OutcomeNoop:
		s.logg.Info(ctx, fmt.Sprintf("%s already applied", milestone))
	default:
		s.logg.Info(ctx, milestone)
	}
}

func failureReason(intent *stripe.PaymentIntent) string {
	if intent == nil || intent.LastPaymentError == nil {
		return ""
	}
	return strings.TrimSpace(intent.LastPaymentError.Msg)
}

func wrapDispatchErr(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
