package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopfront-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/shopfront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/shopfront-backend/api/middleware"
	"github.com/angelmondragon/shopfront-backend/internal/auth"
	"github.com/angelmondragon/shopfront-backend/internal/cart"
	"github.com/angelmondragon/shopfront-backend/internal/categories"
	"github.com/angelmondragon/shopfront-backend/internal/orders"
	"github.com/angelmondragon/shopfront-backend/internal/payments"
	"github.com/angelmondragon/shopfront-backend/internal/products"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Store is the redis surface used by readiness, rate limiting and idempotency.
type Store interface {
	controllers.Pinger
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Set(context.Context, string, any, time.Duration) error
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Params carries everything cmd/api builds once and the router fans out to handlers.
type Params struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          Store
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	Sessions       sessionManager

	Auth       auth.Service
	Categories categories.Service
	Products   products.Service
	Cart       cart.Service
	Orders     orders.Service
	Payments   payments.Service

	StripeWebhooks     webhookcontrollers.StripeWebhookService
	StripeSigner       stripeSigner
	StripeWebhookGuard stripeWebhookGuard
}

type stripeSigner interface {
	SigningSecret() string
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.App.FrontendURL),
	)

	readiness := map[string]controllers.Pinger{"database": p.DB, "redis": p.Redis}

	r.Get("/", controllers.Welcome(cfg))
	r.Get("/health", controllers.HealthLive(cfg))
	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, readiness, logg))
	if p.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", p.MetricsHandler)
	}

	requireAuth := middleware.Auth(cfg.JWT, p.Sessions, p.Auth, logg)
	requireAdmin := middleware.RequireRole(enums.RoleAdmin, logg)
	orderKeyed := middleware.Idempotency(p.Redis, middleware.OrderIdempotencyTTL, logg)
	paymentKeyed := middleware.Idempotency(p.Redis, middleware.PaymentIdempotencyTTL, logg)

	r.Route("/api", func(r chi.Router) {
		r.Post("/payments/webhook", webhookcontrollers.StripeWebhook(p.StripeWebhooks, p.StripeSigner, p.StripeWebhookGuard, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(middleware.RegisterRateLimit(cfg.AuthRateLimit), p.Redis, logg)).
				Post("/register", controllers.AuthRegister(p.Auth, logg))
			r.With(middleware.AuthRateLimit(middleware.LoginRateLimit(cfg.AuthRateLimit), p.Redis, logg)).
				Post("/login", controllers.AuthLogin(p.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.Sessions, cfg.JWT, logg))
			r.Post("/logout", controllers.AuthLogout(p.Sessions, cfg.JWT, logg))
			r.With(requireAuth).Get("/profile", controllers.AuthProfile(p.Auth, logg))
		})

		// Catalog reads are public; every mutation needs an admin bearer.
		r.Get("/categories", controllers.CategoryList(p.Categories, logg))
		r.Get("/categories/slug/{slug}", controllers.CategoryGetBySlug(p.Categories, logg))
		r.Get("/categories/{id}", controllers.CategoryGet(p.Categories, logg))
		r.Get("/products", controllers.ProductList(p.Products, logg))
		r.Get("/products/{id}", controllers.ProductGet(p.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Post("/categories", controllers.CategoryCreate(p.Categories, logg))
			r.Patch("/categories/{id}", controllers.CategoryUpdate(p.Categories, logg))
			r.Delete("/categories/{id}", controllers.CategoryDelete(p.Categories, logg))

			r.Post("/products", controllers.ProductCreate(p.Products, logg))
			r.Patch("/products/{id}", controllers.ProductUpdate(p.Products, logg))
			r.Delete("/products/{id}", controllers.ProductDelete(p.Products, logg))
			r.Post("/products/{id}/variants", controllers.ProductAddVariant(p.Products, logg))
			r.Patch("/products/variants/{variantId}/stock", controllers.ProductUpdateVariantStock(p.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/cart", controllers.CartGet(p.Cart, logg))
			r.Delete("/cart", controllers.CartClear(p.Cart, logg))
			r.Post("/cart/items", controllers.CartAddItem(p.Cart, logg))
			r.Patch("/cart/items/{id}", controllers.CartUpdateItem(p.Cart, logg))
			r.Delete("/cart/items/{id}", controllers.CartRemoveItem(p.Cart, logg))

			r.With(orderKeyed).Post("/orders", controllers.OrderCreate(p.Orders, logg))
			r.Get("/orders", controllers.OrderList(p.Orders, logg))
			r.Get("/orders/{id}", controllers.OrderGet(p.Orders, logg))

			r.With(paymentKeyed).Post("/payments/create-payment-intent", controllers.PaymentCreateIntent(p.Payments, logg))
			r.Get("/payments/status/{orderId}", controllers.PaymentStatus(p.Payments, logg))
		})
	})

	return r
}
