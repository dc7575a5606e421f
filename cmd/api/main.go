package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avelinabooks/bookshop-backend/api/routes"
	authsvc "github.com/avelinabooks/bookshop-backend/internal/auth"
	"github.com/avelinabooks/bookshop-backend/internal/catalog"
	"github.com/avelinabooks/bookshop-backend/internal/orders"
	"github.com/avelinabooks/bookshop-backend/internal/promotions"
	"github.com/avelinabooks/bookshop-backend/internal/ratings"
	"github.com/avelinabooks/bookshop-backend/internal/reviews"
	"github.com/avelinabooks/bookshop-backend/internal/users"
	"github.com/avelinabooks/bookshop-backend/pkg/cache"
	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/db"
	"github.com/avelinabooks/bookshop-backend/pkg/logger"
	"github.com/avelinabooks/bookshop-backend/pkg/metrics"
	"github.com/avelinabooks/bookshop-backend/pkg/migrate"
	"github.com/avelinabooks/bookshop-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	responseCache, err := cache.New(redisClient, cfg.Cache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cache", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)
	orderMetrics := metrics.NewOrderMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	gormDB := dbClient.DB()
	catalogRepo := catalog.NewRepository(gormDB)
	categoryRepo := catalog.NewCategoryRepository(gormDB)
	promotionRepo := promotions.NewRepository(gormDB)
	userRepo := users.NewRepository(gormDB)
	guestRepo := users.NewGuestRepository(gormDB)
	reviewRepo := reviews.NewRepository(gormDB)

	ratingsService, err := ratings.NewService(ratings.NewClient(cfg.Ratings), catalogRepo, cfg.Ratings, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ratings service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalogRepo, categoryRepo, dbClient, responseCache, ratingsService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	promotionsService, err := promotions.NewService(promotionRepo, catalogRepo, responseCache)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotions service", err)
		os.Exit(1)
	}

	reviewsService, err := reviews.NewService(reviewRepo, catalogRepo, userRepo, responseCache)
	if err != nil {
		logg.Error(context.Background(), "failed to create reviews service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(userRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		orders.NewRepository(gormDB),
		dbClient,
		orders.NewBookStore(catalogRepo),
		orders.NewPromotionSource(promotionRepo),
		orders.NewAccountLedger(userRepo, guestRepo),
		orderMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	authService, err := authsvc.NewService(userRepo, guestRepo, redisClient, redisClient, cfg.JWT, cfg.Password, cfg.RateLimit)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, redisClient, httpMetrics, metricsHandler, routes.Services{
			Auth:       authService,
			Catalog:    catalogService,
			Promotions: promotionsService,
			Orders:     ordersService,
			Reviews:    reviewsService,
			Users:      usersService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
