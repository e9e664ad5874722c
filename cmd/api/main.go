package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/bootstrap"
	"github.com/spec-kit/helpdesk/internal/clock"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
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

	stores, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	defer stores.Close()

	if stores.MigrateOnStart() {
		if err := stores.Migrate(ctx); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
		metrics.RecordBuildInfo(cfg.App.Version)
	}

	clk := clock.Real()
	dispatcher := events.NewInMemoryDispatcher(observability.Named(logger, "events"))

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		AccountRepo: stores.Accounts,
		Clock:       clk,
		Logger:      observability.Named(logger, "auth"),
	})
	if cfg.Auth.BootstrapAdminEmail != "" {
		if _, err := authService.EnsureAdministrator(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPass); err != nil {
			logger.Fatal("failed to bootstrap administrator", zap.Error(err))
		}
	}

	policy, err := service.NewAccessPolicy()
	if err != nil {
		logger.Fatal("failed to load access policy", zap.Error(err))
	}

	collab := service.NewCollaborationService(service.CollaborationDependencies{
		Registry: service.NewTicketRegistry(service.RegistryDependencies{
			TicketRepo: stores.Tickets,
			Clock:      clk,
			Logger:     observability.Named(logger, "registry"),
		}),
		Thread: service.NewMessageThread(service.ThreadDependencies{
			MessageRepo: stores.Messages,
			Clock:       clk,
			Logger:      observability.Named(logger, "thread"),
		}),
		Ledger: service.NewAttachmentLedger(service.LedgerDependencies{
			AttachmentRepo: stores.Attachments,
			Blobs:          stores.Blobs,
			Clock:          clk,
			Logger:         observability.Named(logger, "ledger"),
			MaxBytes:       cfg.Attachments.MaxBytes,
			AllowedTypes:   cfg.Attachments.AllowedTypes,
		}),
		Policy:      policy,
		AccountRepo: stores.Accounts,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Clock:       clk,
		Logger:      observability.Named(logger, "collaboration"),
	})

	notifyLogger := observability.Named(logger, "notifications")
	notificationWorker := worker.NewNotificationWorker(service.LogNotifier(notifyLogger), 256, notifyLogger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, notifyLogger, cfg.Notification, notificationWorker.Enqueue))
	notificationWorker.Start(ctx)

	app := fiber.New(httptransport.NewFiberConfig(cfg.App.Name, cfg.Attachments.MaxBytes, httptransport.ErrorHandler(logger)))
	httptransport.RegisterMiddlewares(app, observability.Named(logger, "http"), metrics, cfg.App.RequestTimeout())

	checks := make([]handlers.DependencyCheck, 0, len(stores.Checks))
	for _, c := range stores.Checks {
		checks = append(checks, handlers.DependencyCheck{Name: c.Name, Ping: c.Ping})
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(collab),
		Attachments:    handlers.NewAttachmentsHandler(collab),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), stores.Accounts),
		Metrics:        metrics,
		MetricsPath:    cfg.Metrics.Path,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", stores.Driver()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	notificationWorker.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
