package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/avelinabooks/bookshop-backend/pkg/logger"
)

const defaultGuestRetention = 72 * time.Hour

type GuestCleanupJobParams struct {
	Logger     *logger.Logger
	Repository guestCleanupRepo
	Retention  time.Duration
}

type guestCleanupRepo interface {
	DeleteStaleWithoutOrders(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewGuestCleanupJob(params GuestCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("guest repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultGuestRetention
	}
	return &guestCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type guestCleanupJob struct {
	logg      *logger.Logger
	repo      guestCleanupRepo
	retention time.Duration
	now       func() time.Time
}

func (j *guestCleanupJob) Name() string { return "guest-cleanup" }

func (j *guestCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteStaleWithoutOrders(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("guest cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "guest cleanup complete")
	return nil
}
