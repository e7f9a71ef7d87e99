package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/canvasly/canvasly-backend/api/routes"
	"github.com/canvasly/canvasly-backend/internal/checkout"
	"github.com/canvasly/canvasly-backend/internal/fees"
	"github.com/canvasly/canvasly-backend/internal/fulfillment"
	"github.com/canvasly/canvasly-backend/internal/inventory"
	"github.com/canvasly/canvasly-backend/internal/listings"
	"github.com/canvasly/canvasly-backend/internal/notifications"
	"github.com/canvasly/canvasly-backend/internal/orders"
	"github.com/canvasly/canvasly-backend/internal/settlement"
	"github.com/canvasly/canvasly-backend/internal/subscriptions"
	"github.com/canvasly/canvasly-backend/internal/users"
	"github.com/canvasly/canvasly-backend/pkg/config"
	"github.com/canvasly/canvasly-backend/pkg/db"
	"github.com/canvasly/canvasly-backend/pkg/instance"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/metrics"
	"github.com/canvasly/canvasly-backend/pkg/migrate"
	"github.com/canvasly/canvasly-backend/pkg/outbox"
	"github.com/canvasly/canvasly-backend/pkg/redis"
	"github.com/canvasly/canvasly-backend/pkg/shippo"
	"github.com/canvasly/canvasly-backend/pkg/square"
	"github.com/canvasly/canvasly-backend/pkg/stripe"
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

	cfg.Service.Kind = "api"

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}
	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square", err)
		os.Exit(1)
	}
	shippoClient, err := shippo.NewClient(context.Background(), cfg.Shippo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap shippo", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	ordersRepo := orders.NewRepository(gormDB)
	listingsRepo := listings.NewRepository(gormDB)
	usersRepo := users.NewRepository(gormDB)
	subscriptionsRepo := subscriptions.NewRepository(gormDB)
	notificationsRepo := notifications.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	guard, err := inventory.NewGuard(gormDB)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory guard", err)
		os.Exit(1)
	}
	feeCalculator, err := fees.NewCalculator(cfg.Fees)
	if err != nil {
		logg.Error(context.Background(), "failed to create fee calculator", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Listings: listingsRepo,
		Users:    usersRepo,
		Guard:    guard,
		Fees:     feeCalculator,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
		Pipeline: pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:     subscriptionsRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
		Pipeline: pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Sessions:      stripeClient,
		Orders:        ordersService,
		Subscriptions: subscriptionsService,
		Users:         usersRepo,
		Payments:      squareClient,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Orders:   ordersRepo,
		Users:    usersRepo,
		Payments: stripeClient,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
		Pipeline: pipelineMetrics,
		Currency: cfg.Fees.Currency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	fulfillmentService, err := fulfillment.NewService(fulfillment.ServiceParams{
		Orders:   ordersRepo,
		Listings: listingsRepo,
		Users:    usersRepo,
		Carrier:  shippoClient,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
		Pipeline: pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			ordersService,
			checkoutService,
			settlementService,
			fulfillmentService,
			subscriptionsService,
			notificationsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
