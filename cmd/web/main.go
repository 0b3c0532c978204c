package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/criteria-it/servicedesk-copilot/internal/api/http"
	"github.com/criteria-it/servicedesk-copilot/internal/api/http/handlers"
	"github.com/criteria-it/servicedesk-copilot/internal/api/http/views"
	"github.com/criteria-it/servicedesk-copilot/internal/auth"
	"github.com/criteria-it/servicedesk-copilot/internal/config"
	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
	"github.com/criteria-it/servicedesk-copilot/internal/events"
	"github.com/criteria-it/servicedesk-copilot/internal/messaging"
	"github.com/criteria-it/servicedesk-copilot/internal/observability"
	"github.com/criteria-it/servicedesk-copilot/internal/persistence"
	"github.com/criteria-it/servicedesk-copilot/internal/review"
	"github.com/criteria-it/servicedesk-copilot/internal/session"
	"github.com/criteria-it/servicedesk-copilot/internal/worker"
	"github.com/criteria-it/servicedesk-copilot/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	var (
		storage session.Storage
		ready   handlers.Pinger
	)
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		storage = session.NewRedisStorage(redis.Client, cfg.App.Name+":", cfg.Session.TokenTTL())
		ready = redis
	default:
		storage = session.NewMemoryStorage()
	}

	var publisher messaging.Publisher = messaging.NewNoop(logger)
	if cfg.Messaging.Enabled() {
		amqpPublisher, err := messaging.NewAMQPPublisher(cfg.Messaging.AMQPURL, cfg.Messaging.Exchange, logger)
		if err != nil {
			logger.Warn("amqp unavailable, audit events stay local", zap.Error(err))
		} else {
			publisher = amqpPublisher
		}
	}
	defer publisher.Close() //nolint:errcheck

	dispatcher := events.NewInMemoryDispatcher()
	audit := worker.NewAuditWorker(publisher, cfg.App.Name, logger, 0)
	audit.Register(dispatcher)
	audit.Start()
	defer audit.Stop()

	apiClient := copilotapi.NewClient(copilotapi.Options{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout(),
		Metrics: metrics,
		Logger:  logger,
	})

	sessions := session.NewManager(apiClient, storage, dispatcher, logger)
	workspaces := workspace.NewRegistry(workspace.Options{
		StaleTime:  cfg.Query.StaleTime(),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	workspaces.Subscribe(dispatcher)
	reviews := review.NewService(apiClient.Clone(), review.Options{Dispatcher: dispatcher, Logger: logger})

	go worker.RunSessionSweeper(ctx, sessions, cfg.Session.IdleTimeout(), cfg.Session.SweepInterval(), logger)

	renderer, err := views.NewRenderer(cfg.Web.TemplateDir, cfg.App.IsDevelopment())
	if err != nil {
		logger.Fatal("failed to load templates", zap.Error(err))
	}

	sessionMiddleware := auth.NewSessionMiddleware(
		auth.NewCookieSigner(cfg.Session.Secret, cfg.Session.TokenTTL()),
		sessions,
		auth.CookieOptions{Name: cfg.Session.CookieName, Secure: cfg.Session.SecureCookie},
		logger,
	)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, renderer, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, ready),
		Auth:    handlers.NewAuthHandler(sessions, renderer, logger),
		Tickets: handlers.NewTicketsHandler(workspaces, renderer, logger),
		Review:  handlers.NewReviewHandler(reviews, renderer, logger),
		Session: sessionMiddleware,
		Metrics: metrics.Handler(),
	})

	go func() {
		logger.Info("console listening", zap.String("addr", cfg.App.Addr()), zap.String("backend", cfg.Backend.BaseURL))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
