package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shoply/fulfillment-service/internal/app"
	"github.com/shoply/fulfillment-service/internal/config"
	"github.com/shoply/fulfillment-service/internal/gateway"
	"github.com/shoply/fulfillment-service/internal/handler"
	"github.com/shoply/fulfillment-service/internal/outbox"
	"github.com/shoply/fulfillment-service/internal/postgres"
	"github.com/shoply/fulfillment-service/internal/repo"
	"github.com/shoply/fulfillment-service/internal/service"
	"github.com/shoply/fulfillment-service/pkg/cache"
	"github.com/shoply/fulfillment-service/pkg/trm"
)

func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	logger.Info("postgres connected")

	store := repo.NewPostgresRepo(db)
	txManager := trm.NewManager(db)
	orderCache := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)

	stripeGateway := gateway.New(logger, gateway.Config{
		SecretKey: conf.Stripe.SecretKey,
		Timeout:   conf.Stripe.Timeout,
		Currency:  conf.Stripe.Currency,
	})

	orderService := service.NewOrderService(logger, txManager, store, store, store, orderCache)
	returnService := service.NewReturnService(logger, txManager, store, store, store, orderCache)
	reconciler := service.NewReconcilerService(logger, txManager, store, store, stripeGateway, store, orderCache)

	dispatcher := outbox.NewDispatcher(logger, conf.Outbox, conf.Kafka, store)

	httpHandler := handler.NewHTTPHandler(logger, orderService, returnService, reconciler,
		conf.Stripe.SuccessURL, conf.Stripe.CancelURL)
	webhookHandler := handler.NewWebhookHandler(logger, conf.Stripe.WebhookSecret, reconciler)
	handler.RegisterMetrics()

	application := app.New(logger, conf)
	application.SetHTTPHandlers(httpHandler, webhookHandler)
	application.SetRunners(dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	orderCache.StartJanitor(ctx)

	application.Start(ctx)
	<-ctx.Done()
	application.Stop()

	if err := dispatcher.Close(); err != nil {
		logger.Error("failed to close outbox dispatcher", slog.Any("error", err))
	}
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
