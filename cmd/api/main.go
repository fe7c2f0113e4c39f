package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/boutique-checkout/api/routes"
	"github.com/angelmondragon/boutique-checkout/internal/bag"
	"github.com/angelmondragon/boutique-checkout/internal/checkout"
	"github.com/angelmondragon/boutique-checkout/internal/orders"
	"github.com/angelmondragon/boutique-checkout/internal/payments"
	"github.com/angelmondragon/boutique-checkout/internal/products"
	"github.com/angelmondragon/boutique-checkout/internal/profiles"
	"github.com/angelmondragon/boutique-checkout/internal/reconciliation"
	stripewebhook "github.com/angelmondragon/boutique-checkout/internal/webhooks/stripe"
	"github.com/angelmondragon/boutique-checkout/pkg/config"
	"github.com/angelmondragon/boutique-checkout/pkg/db"
	"github.com/angelmondragon/boutique-checkout/pkg/idempotency"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
	"github.com/angelmondragon/boutique-checkout/pkg/metrics"
	"github.com/angelmondragon/boutique-checkout/pkg/migrate"
	"github.com/angelmondragon/boutique-checkout/pkg/outbox"
	"github.com/angelmondragon/boutique-checkout/pkg/redis"
	pkgstripe "github.com/angelmondragon/boutique-checkout/pkg/stripe"
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

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, db.Options{UseSQLite: cfg.FeatureFlags.UseSQLite}, logg)
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	conn := dbClient.DB()
	orderRepo := orders.NewRepository(conn)
	profileRepo := profiles.NewRepository(conn)

	writer, err := orders.NewWriter(orderRepo)
	if err != nil {
		fatal(logg, "failed to create order writer", err)
	}
	materializer, err := orders.NewMaterializer(orderRepo, products.NewRepository(conn))
	if err != nil {
		fatal(logg, "failed to create line item materializer", err)
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:         orderRepo,
		Writer:       writer,
		Materializer: materializer,
		Tx:           dbClient,
		Outbox:       outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:       logg,
	})
	if err != nil {
		fatal(logg, "failed to create order service", err)
	}

	bridge, err := payments.NewBridge(payments.NewStripeAPI(stripeClient), stripeClient.Currency(), logg)
	if err != nil {
		fatal(logg, "failed to create payment bridge", err)
	}

	bagStore, err := bag.NewStore(redisClient, cfg.Checkout.SessionTTL)
	if err != nil {
		fatal(logg, "failed to create bag store", err)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Bags:      bagStore,
		Payments:  bridge,
		Orders:    orderService,
		Profiles:  profileRepo,
		PublicKey: stripeClient.PublicKey(),
		Logger:    logg,
	})
	if err != nil {
		fatal(logg, "failed to create checkout service", err)
	}

	engine, err := reconciliation.NewEngine(reconciliation.EngineParams{
		Orders:      orderService,
		Profiles:    profileRepo,
		MaxAttempts: cfg.Checkout.ReconcileAttempts,
		RetryDelay:  cfg.Checkout.ReconcileRetryDelay,
		Metrics:     metrics.NewReconciliationMetrics(registry),
		Logger:      logg,
	})
	if err != nil {
		fatal(logg, "failed to create reconciliation engine", err)
	}

	dispatcher, err := stripewebhook.NewDispatcher(stripewebhook.DispatcherParams{
		Reconciler: engine,
		Charges:    bridge,
		Metrics:    metrics.NewWebhookMetrics(registry),
		Logger:     logg,
	})
	if err != nil {
		fatal(logg, "failed to create webhook dispatcher", err)
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Checkout.WebhookEventTTL, cfg.Checkout.WebhookClaimTTL)
	if err != nil {
		fatal(logg, "failed to create webhook idempotency guard", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Gatherer:      registry,
			Bags:          bagStore,
			Checkout:      checkoutService,
			Webhooks:      dispatcher,
			WebhookGuard:  guard,
			SigningClient: stripeClient,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
