package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/shineyder/ticket-system/internal/api/http"
	"github.com/shineyder/ticket-system/internal/api/http/handlers"
	"github.com/shineyder/ticket-system/internal/broker"
	"github.com/shineyder/ticket-system/internal/cache"
	"github.com/shineyder/ticket-system/internal/config"
	"github.com/shineyder/ticket-system/internal/events"
	"github.com/shineyder/ticket-system/internal/idempotency"
	"github.com/shineyder/ticket-system/internal/observability"
	"github.com/shineyder/ticket-system/internal/persistence"
	"github.com/shineyder/ticket-system/internal/projection"
	"github.com/shineyder/ticket-system/internal/repository"
	"github.com/shineyder/ticket-system/internal/service"
	"github.com/shineyder/ticket-system/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	metrics := observability.NewMetrics()

	eventStore := repository.NewEventStore(pool)
	readRepo := repository.NewTicketReadRepository(pool)
	cachedReads := cache.NewTicketReadCache(readRepo, redis.Client, cfg.Cache.TTL(), logger)
	guard := idempotency.NewRedisGuard(redis.Client, cfg.Idempotency.TTL())

	projector := projection.NewProjector(cachedReads, guard, cachedReads, eventStore, logger, metrics)
	publisher := broker.NewStreamPublisher(redis.Client, cfg.Broker.Stream, guard, logger, metrics)

	dispatcher := events.NewAsyncDispatcher(logger, cfg.Dispatch.MaxAttempts, events.BackoffConfig{
		BaseDelay: time.Duration(cfg.Dispatch.BaseDelayMs) * time.Millisecond,
		MaxDelay:  time.Duration(cfg.Dispatch.MaxDelayMs) * time.Millisecond,
	})
	worker.RegisterConsumers(dispatcher, projector, publisher)

	ticketService := service.NewTicketService(service.TicketDependencies{
		EventStore: eventStore,
		ReadRepo:   cachedReads,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	ticketsHandler := handlers.NewTicketsHandler(ticketService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  healthHandler,
		Tickets: ticketsHandler,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	dispatcher.Close()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
