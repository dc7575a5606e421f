package cron

import (
	"context"
	"fmt"

	"github.com/avelinabooks/bookshop-backend/pkg/logger"
)

type RatingRefreshJobParams struct {
	Logger    *logger.Logger
	Refresher staleRatingRefresher
}

type staleRatingRefresher interface {
	RefreshStale(ctx context.Context) (int, error)
}

func NewRatingRefreshJob(params RatingRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Refresher == nil {
		return nil, fmt.Errorf("rating refresher required")
	}
	return &ratingRefreshJob{logg: params.Logger, refresher: params.Refresher}, nil
}

type ratingRefreshJob struct {
	logg      *logger.Logger
	refresher staleRatingRefresher
}

func (j *ratingRefreshJob) Name() string { return "rating-refresh" }

func (j *ratingRefreshJob) Run(ctx context.Context) error {
	refreshed, err := j.refresher.RefreshStale(ctx)
	if err != nil {
		return fmt.Errorf("rating refresh: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "books_refreshed", refreshed)
	j.logg.Info(logCtx, "rating refresh complete")
	return nil
}
