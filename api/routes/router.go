package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avelinabooks/bookshop-backend/api/controllers"
	"github.com/avelinabooks/bookshop-backend/api/middleware"
	authsvc "github.com/avelinabooks/bookshop-backend/internal/auth"
	"github.com/avelinabooks/bookshop-backend/internal/catalog"
	"github.com/avelinabooks/bookshop-backend/internal/orders"
	"github.com/avelinabooks/bookshop-backend/internal/promotions"
	"github.com/avelinabooks/bookshop-backend/internal/reviews"
	"github.com/avelinabooks/bookshop-backend/internal/users"
	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	"github.com/avelinabooks/bookshop-backend/pkg/logger"
	"github.com/avelinabooks/bookshop-backend/pkg/metrics"
	"github.com/avelinabooks/bookshop-backend/pkg/redis"
)

// Services bundles the wired domain services the router exposes.
type Services struct {
	Auth       authsvc.Service
	Catalog    catalog.Service
	Promotions promotions.Service
	Orders     orders.Service
	Reviews    reviews.Service
	Users      users.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	httpMetrics *metrics.HTTPMetrics,
	metricsHandler http.Handler,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.RateLimit.RegisterWindow,
		cfg.RateLimit.RegisterIPLimit,
		cfg.RateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/login/2fa", controllers.AuthTwoFactorLogin(svcs.Auth, logg))
		r.Post("/guests", controllers.GuestCreate(svcs.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Post("/2fa/setup", controllers.AuthTwoFactorSetup(svcs.Auth, logg))
			r.Post("/2fa/confirm", controllers.AuthTwoFactorConfirm(svcs.Auth, logg))
			r.Post("/2fa/disable", controllers.AuthTwoFactorDisable(svcs.Auth, logg))
		})
	})

	r.Route("/api/v1/books", func(r chi.Router) {
		r.Get("/", controllers.BookList(svcs.Catalog, logg))
		r.Get("/bestsellers", controllers.BookBestsellers(svcs.Catalog, logg))
		r.Get("/top-rated", controllers.ReviewTopRated(svcs.Reviews, logg))
		r.Get("/{bookId}", controllers.BookGet(svcs.Catalog, logg))
		r.Get("/{bookId}/reviews", controllers.ReviewListForBook(svcs.Reviews, logg))
		r.Get("/{bookId}/promotions", controllers.PromotionListForBook(svcs.Promotions, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Post("/{bookId}/reviews", controllers.ReviewCreate(svcs.Reviews, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg), middleware.RequireTier(enums.TierAdmin, logg))
			r.Post("/", controllers.BookCreate(svcs.Catalog, logg))
			r.Patch("/{bookId}", controllers.BookUpdate(svcs.Catalog, logg))
			r.Delete("/{bookId}", controllers.BookDelete(svcs.Catalog, logg))
		})
	})

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Get("/", controllers.CategoryList(svcs.Catalog, logg))
		r.Get("/{categoryId}", controllers.CategoryGet(svcs.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg), middleware.RequireTier(enums.TierAdmin, logg))
			r.Post("/", controllers.CategoryCreate(svcs.Catalog, logg))
			r.Patch("/{categoryId}", controllers.CategoryUpdate(svcs.Catalog, logg))
			r.Delete("/{categoryId}", controllers.CategoryDelete(svcs.Catalog, logg))
			r.Post("/{categoryId}/subcategories", controllers.CategoryLinkSubcategory(svcs.Catalog, logg))
		})
	})

	r.Route("/api/v1/promotions", func(r chi.Router) {
		r.Get("/", controllers.PromotionListActive(svcs.Promotions, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg), middleware.RequireTier(enums.TierAdmin, logg))
			r.Post("/", controllers.PromotionCreate(svcs.Promotions, logg))
			r.Patch("/{promotionId}", controllers.PromotionUpdate(svcs.Promotions, logg))
			r.Delete("/{promotionId}", controllers.PromotionDelete(svcs.Promotions, logg))
		})
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Post("/", controllers.OrderCreate(svcs.Orders, logg))
		r.Get("/{orderId}", controllers.OrderGet(svcs.Orders, logg))
		r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
	})

	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/orders", controllers.OrderListMine(svcs.Orders, logg))
		r.Get("/reviews", controllers.ReviewListMine(svcs.Reviews, logg))
	})

	r.Route("/api/v1/guests/{guestId}", func(r chi.Router) {
		r.Get("/orders", controllers.OrderListForGuest(svcs.Orders, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg), middleware.RequireTier(enums.TierAdmin, logg))
		r.Get("/users", controllers.AdminUserList(svcs.Users, logg))
		r.Get("/users/{userId}", controllers.AdminUserGet(svcs.Users, logg))
		r.Patch("/users/{userId}/tier", controllers.AdminUserChangeTier(svcs.Users, logg))
		r.Post("/users/{userId}/deactivate", controllers.AdminUserDeactivate(svcs.Users, logg))
		r.Post("/users/{userId}/reactivate", controllers.AdminUserReactivate(svcs.Users, logg))
		r.Patch("/orders/{orderId}/status", controllers.OrderUpdateStatus(svcs.Orders, logg))
		r.Get("/orders/revenue", controllers.OrderRevenue(svcs.Orders, logg))
	})

	return r
}
