package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shopfront-backend/api/routes"
	"github.com/angelmondragon/shopfront-backend/internal/auth"
	"github.com/angelmondragon/shopfront-backend/internal/cart"
	"github.com/angelmondragon/shopfront-backend/internal/categories"
	"github.com/angelmondragon/shopfront-backend/internal/orders"
	"github.com/angelmondragon/shopfront-backend/internal/payments"
	"github.com/angelmondragon/shopfront-backend/internal/products"
	"github.com/angelmondragon/shopfront-backend/internal/users"
	stripewebhook "github.com/angelmondragon/shopfront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/instance"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/angelmondragon/shopfront-backend/pkg/migrate"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
	"github.com/angelmondragon/shopfront-backend/pkg/redis"
	"github.com/angelmondragon/shopfront-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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

	logg = logger.ForService("api", cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("run dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return fmt.Errorf("create stripe client: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	commerceMetrics := metrics.NewCommerceMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	svcs, err := buildServices(cfg, logg, dbClient, redisClient, sessionManager, stripeClient, commerceMetrics)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.GetID(),
		"stripe_env": stripeClient.Environment(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			HTTPMetrics:    httpMetrics,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
			Sessions:       sessionManager,

			Auth:       svcs.auth,
			Categories: svcs.categories,
			Products:   svcs.products,
			Cart:       svcs.cart,
			Orders:     svcs.orders,
			Payments:   svcs.payments,

			StripeWebhooks:     svcs.webhooks,
			StripeSigner:       stripeClient,
			StripeWebhookGuard: svcs.webhookGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	return nil
}

type services struct {
	auth         auth.Service
	categories   categories.Service
	products     products.Service
	cart         cart.Service
	orders       orders.Service
	payments     payments.Service
	webhooks     *stripewebhook.Service
	webhookGuard *stripewebhook.IdempotencyGuard
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	stripeClient *stripe.Client,
	commerceMetrics *metrics.CommerceMetrics,
) (*services, error) {
	var (
		svc services
		err error
	)

	svc.auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:         users.NewRepository(dbClient.DB()),
		SessionManager:   sessionManager,
		JWTConfig:        cfg.JWT,
		PasswordConfig:   cfg.Password,
		AllowAdminSignup: cfg.FeatureFlags.AllowAdminSignup,
		Logger:           logg,
	})
	if err != nil {
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	svc.categories, err = categories.NewService(categories.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return nil, fmt.Errorf("create category service: %w", err)
	}

	svc.products, err = products.NewService(products.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return nil, fmt.Errorf("create product service: %w", err)
	}

	svc.cart, err = cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Metrics:  commerceMetrics,
		Currency: cfg.Payments.Currency,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("create cart service: %w", err)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	svc.orders, err = orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Outbox:   outboxService,
		Metrics:  commerceMetrics,
		Currency: cfg.Payments.Currency,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("create order service: %w", err)
	}

	paymentsRepo := payments.NewRepository(dbClient.DB())
	svc.payments, err = payments.NewService(payments.ServiceParams{
		Repo:     paymentsRepo,
		Tx:       dbClient,
		Stripe:   stripeClient.Intents(),
		Metrics:  commerceMetrics,
		Currency: cfg.Payments.Currency,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment service: %w", err)
	}

	svc.webhooks, err = stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments:          paymentsRepo,
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Metrics:           commerceMetrics,
		Logger:            logg,
	})
	if err != nil {
		return nil, fmt.Errorf("create stripe webhook service: %w", err)
	}

	svc.webhookGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookDedupTTL)
	if err != nil {
		return nil, fmt.Errorf("create stripe webhook guard: %w", err)
	}

	return &svc, nil
}
