package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/complaint-service/internal/api/http"
	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/notification"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/persistence"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/storage"
	"github.com/spec-kit/complaint-service/internal/tracking"
	"github.com/spec-kit/complaint-service/internal/worker"
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pool := pg.PoolHandle()
	txManager := persistence.NewTxManager(pool)
	complaintRepo := repository.NewComplaintRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	historyRepo := repository.NewComplaintHistoryRepository(pool)
	requestRepo := repository.NewInformationRequestRepository(pool)

	files, err := storage.Open(cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init attachment storage", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}

	allocator := tracking.NewAllocator(tracking.NewRandomGenerator(cfg.Tracking.Prefix), complaintRepo, cfg.Tracking.MaxAttempts, logger)
	allocator.OnCollision(metrics.RecordTrackingCollision)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(notification.NewService(dispatcher, redis, logger, cfg.Notification))
	notifier := notification.NewEventNotifier(dispatcher, logger)

	guard := service.NewConcurrencyGuard(complaintRepo, metrics, logger)
	recorder := service.NewHistoryRecorder(historyRepo, logger, metrics)

	complaintService := service.NewComplaintService(service.ComplaintDependencies{
		TxManager:      txManager,
		ComplaintRepo:  complaintRepo,
		AttachmentRepo: attachmentRepo,
		Guard:          guard,
		History:        recorder,
		Tracking:       allocator,
		Files:          files,
		Notifier:       notifier,
		Metrics:        metrics,
		Logger:         logger,
	})
	requestService := service.NewInformationRequestService(service.InformationRequestDependencies{
		TxManager:      txManager,
		ComplaintRepo:  complaintRepo,
		RequestRepo:    requestRepo,
		AttachmentRepo: attachmentRepo,
		Guard:          guard,
		History:        recorder,
		Files:          files,
		Notifier:       notifier,
		Metrics:        metrics,
		Logger:         logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.Storage.MaxUploadMB << 20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Complaints:     handlers.NewComplaintsHandler(complaintService),
		InfoRequests:   handlers.NewInfoRequestsHandler(requestService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Gatherer:       registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("graceful shutdown incomplete", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
