package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox/registry"
)

const (
	workerName = "outbox-publisher"

	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	publishTimeout      = 15 * time.Second
	maxErrorBackoff     = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

// delivery is what happened to one outbox row during a drain.
type delivery int

const (
	delivered delivery = iota
	retryLater
	parked
)

func (d delivery) String() string {
	switch d {
	case delivered:
		return "delivered"
	case retryLater:
		return "retry"
	case parked:
		return "parked"
	default:
		return "unknown"
	}
}

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// topicPublisher is satisfied by *pubsub.Client.
type topicPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Publisher  topicPublisher
	Repository outboxRepository
	Registry   registryResolver
	Metrics    *metrics.WorkerMetrics
}

// Service relays committed order and payment events from the outbox table to Pub/Sub.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pub          topicPublisher
	repo         outboxRepository
	registry     registryResolver
	metrics      *metrics.WorkerMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Publisher == nil:
		return nil, errors.New("pubsub publisher is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	cfg := params.Config.Outbox
	svc := &Service{
		logg:         params.Logger,
		db:           params.DB,
		pub:          params.Publisher,
		repo:         params.Repository,
		registry:     params.Registry,
		metrics:      params.Metrics,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
	if svc.batchSize <= 0 {
		svc.batchSize = defaultBatchSize
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = defaultMaxAttempts
	}
	if svc.pollInterval <= 0 {
		svc.pollInterval = defaultPollInterval
	}
	return svc, nil
}

// Run drains the outbox until ctx is cancelled. A batch that delivered
// something is followed immediately by another drain. An empty batch waits a
// poll interval, and a batch where every row failed backs off like an error.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	pace := newPacer(s.pollInterval, maxErrorBackoff)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox drain failed", err)
			wait = pace.failed()
		case batch.delivered > 0:
			pace.reset()
			continue
		case batch.handled > 0:
			wait = pace.failed()
		default:
			pace.reset()
			wait = pace.idle()
		}

		if err := sleepCtx(ctx, wait+rand.N(maxJitter)); err != nil {
			return err
		}
	}
}

// batchResult counts the rows a drain touched and how many of them reached Pub/Sub.
type batchResult struct {
	handled   int
	delivered int
}

// processBatch locks one batch of rows and relays each.
func (s *Service) processBatch(ctx context.Context) (batchResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveBatch(workerName, time.Since(start)) }()

	var result batchResult
	tally := make(map[string]any, 3)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, event := range events {
			outcome, err := s.relay(ctx, tx, event)
			if err != nil {
				return err
			}
			n, _ := tally[outcome.String()].(int)
			tally[outcome.String()] = n + 1
			result.handled++
			if outcome == delivered {
				result.delivered++
			}
		}
		return nil
	})
	if err != nil {
		return batchResult{}, err
	}
	if result.handled > 0 {
		s.logg.Debug(s.logg.WithFields(ctx, tally), "outbox batch drained")
	}
	return result, nil
}

// relay publishes one row and records the outcome. Only bookkeeping failures are returned.
func (s *Service) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (delivery, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.park(s.logg.WithFields(ctx, rowFields(event, nil)), tx, event, "undecodable", err)
	}

	ctx = s.logg.WithFields(ctx, rowFields(event, resolved))
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	_, err = s.pub.Publish(publishCtx, resolved.Descriptor.Topic, buildMessage(event, resolved))
	cancel()

	attempt := event.AttemptCount + 1
	switch {
	case err == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return delivered, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(workerName, string(event.EventType))
		s.logg.Info(ctx, "domain event published")
		return delivered, nil
	case registry.IsNonRetryable(err):
		return s.park(ctx, tx, event, "non_retryable", err)
	case attempt >= s.maxAttempts:
		return s.park(ctx, tx, event, "max_attempts", fmt.Errorf("gave up after %d attempts: %w", attempt, err))
	}

	s.metrics.IncFailed(workerName, string(event.EventType))
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"attempt": attempt,
		"error":   err.Error(),
	}), "domain event publish failed, will retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, err); err != nil {
		return retryLater, fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return retryLater, nil
}

// park pins the row at maxAttempts so the fetch window never returns it again.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason string, cause error) (delivery, error) {
	s.metrics.IncFailed(workerName, string(event.EventType))
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"park_reason": reason,
		"error":       cause.Error(),
	}), "domain event parked")
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return parked, fmt.Errorf("park %s: %w", event.ID, err)
	}
	return parked, nil
}

func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func rowFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		fields["event_id"] = resolved.Envelope.EventID
	}
	return fields
}

// pacer doubles the wait after each failed drain, capped at max.
type pacer struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newPacer(base, max time.Duration) *pacer {
	return &pacer{base: base, max: max, current: base}
}

func (p *pacer) failed() time.Duration {
	p.current = min(p.current*2, p.max)
	return p.current
}

func (p *pacer) idle() time.Duration {
	return p.base
}

func (p *pacer) reset() {
	p.current = p.base
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
