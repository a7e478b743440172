package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/civicwatch/incident-service/internal/api/http"
	"github.com/civicwatch/incident-service/internal/api/http/handlers"
	"github.com/civicwatch/incident-service/internal/auth"
	"github.com/civicwatch/incident-service/internal/config"
	"github.com/civicwatch/incident-service/internal/events"
	"github.com/civicwatch/incident-service/internal/observability"
	"github.com/civicwatch/incident-service/internal/persistence"
	"github.com/civicwatch/incident-service/internal/repository"
	"github.com/civicwatch/incident-service/internal/service"
	"github.com/civicwatch/incident-service/internal/worker"
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
	userRepo := repository.NewUserRepository(pool)
	incidentRepo := repository.NewIncidentRepository(pool)
	responseRepo := repository.NewResponseRepository(pool)
	locker := repository.NewIncidentLocker(pool, cfg.Assignment.LockWait())

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(cfg.Auth, userRepo)
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		IncidentRepo: incidentRepo,
		UserRepo:     userRepo,
		Locker:       locker,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	incidentService := service.NewIncidentService(service.IncidentDependencies{
		IncidentRepo: incidentRepo,
		ResponseRepo: responseRepo,
		Locker:       locker,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	statsService := service.NewStatsService(incidentRepo, redis, cfg.Stats.CacheTTL(), logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Incidents:      handlers.NewIncidentsHandler(assignmentService, incidentService, statsService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
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
