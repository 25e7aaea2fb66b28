package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

const defaultRetentionDays = 30

type retentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type RetentionParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository retentionRepo
	Days       int
}

// Retention purges published outbox rows once they age past the window.
type Retention struct {
	logg *logger.Logger
	db   txRunner
	repo retentionRepo
	days int
	now  func() time.Time
}

func NewRetention(params RetentionParams) (*Retention, error) {
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	days := params.Days
	if days <= 0 {
		days = defaultRetentionDays
	}
	return &Retention{
		logg: params.Logger,
		db:   params.DB,
		repo: params.Repository,
		days: days,
		now:  time.Now,
	}, nil
}

// Sweep deletes one window's worth of published rows and reports how many went.
func (r *Retention) Sweep(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().Add(-time.Duration(r.days) * 24 * time.Hour)
	var deleted int64
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.repo.DeletePublishedBefore(tx.WithContext(ctx), cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("outbox retention: %w", err)
	}
	if r.logg != nil {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"cutoff":         cutoff,
			"retention_days": r.days,
			"rows_deleted":   deleted,
		}), "outbox retention sweep complete")
	}
	return deleted, nil
}

// Run sweeps on every tick until ctx is cancelled. Sweep failures are logged, not fatal.
func (r *Retention) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("retention interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.Sweep(ctx); err != nil && r.logg != nil {
			r.logg.Error(ctx, "outbox retention sweep failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
