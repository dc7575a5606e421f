package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avelinabooks/bookshop-backend/internal/catalog"
	"github.com/avelinabooks/bookshop-backend/internal/cron"
	"github.com/avelinabooks/bookshop-backend/internal/ratings"
	"github.com/avelinabooks/bookshop-backend/internal/users"
	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/db"
	"github.com/avelinabooks/bookshop-backend/pkg/logger"
	"github.com/avelinabooks/bookshop-backend/pkg/metrics"
	"github.com/avelinabooks/bookshop-backend/pkg/migrate"
	"github.com/avelinabooks/bookshop-backend/pkg/redis"
)

const lockKeyFormat = "worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	metricsCollector := metrics.NewCronJobMetrics(registry)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Worker.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	catalogRepo := catalog.NewRepository(gormDB)
	guestRepo := users.NewGuestRepository(gormDB)

	ratingsService, err := ratings.NewService(ratings.NewClient(cfg.Ratings), catalogRepo, cfg.Ratings, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ratings service", err)
		os.Exit(1)
	}

	guestCleanup, err := cron.NewGuestCleanupJob(cron.GuestCleanupJobParams{
		Logger:     logg,
		Repository: guestRepo,
		Retention:  cfg.Worker.GuestRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create guest cleanup job", err)
		os.Exit(1)
	}

	ratingRefresh, err := cron.NewRatingRefreshJob(cron.RatingRefreshJobParams{
		Logger:    logg,
		Refresher: ratingsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rating refresh job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(guestCleanup, ratingRefresh),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Worker.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting worker")

	go serveMetrics(ctx, logg, cfg.Worker.MetricsBindAddr, registry)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string, registry *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
