package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/config"
	"github.com/noah-isme/gema-tasks-api/internal/database"
	"github.com/noah-isme/gema-tasks-api/internal/handler"
	"github.com/noah-isme/gema-tasks-api/internal/middleware"
	"github.com/noah-isme/gema-tasks-api/internal/observability"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
	"github.com/noah-isme/gema-tasks-api/internal/router"
	"github.com/noah-isme/gema-tasks-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if !cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger = logger.With().Str("service", cfg.AppName).Str("env", cfg.AppEnv).Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PostgresOptions{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		Debug:           !cfg.IsProduction(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(rootCtx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient == nil {
		logger.Warn().Msg("redis disabled: overview cache and cross-node notifications off")
	} else {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn == nil {
		logger.Warn().Msg("nats disabled: deferred completion rechecks off")
	} else {
		defer natsConn.Close()
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())

	taskRepo := repository.NewTaskRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	helpMessageRepo := repository.NewHelpMessageRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	overviewService := service.NewTaskOverviewService(taskRepo, submissionRepo, helpMessageRepo, redisClient, cfg.OverviewCacheTTL, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RedisChannel, natsConn, validate, logger)
	completionService := service.NewTaskCompletionService(taskRepo, submissionRepo, notificationService, overviewService, natsConn, cfg.CompletionRecheckTopic, logger)
	submissionService := service.NewSubmissionService(taskRepo, submissionRepo, helpMessageRepo, completionService, overviewService, validate, logger)
	helpService := service.NewHelpService(taskRepo, submissionRepo, helpMessageRepo, notificationService, overviewService, validate, logger)
	folderService := service.NewFolderService(taskRepo, folderRepo, validate, logger)
	taskService := service.NewTaskService(taskRepo, submissionRepo, helpMessageRepo, folderRepo, overviewService, validate, logger)

	notificationService.Start(rootCtx)
	completionService.Start(rootCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ReadTimeout:  cfg.RequestTimeout,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: !cfg.IsProduction(),
	})
	router.Register(app, cfg, router.Dependencies{
		TaskHandler:         handler.NewTaskHandler(taskService, overviewService, completionService, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, logger),
		HelpHandler:         handler.NewHelpHandler(helpService, logger),
		FolderHandler:       handler.NewFolderHandler(folderService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.RequestTimeout*6),
		HealthProbes:        healthProbes(db, redisClient, natsConn),
		MetricsHandler:      observability.MetricsHandler(),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(rootCtx, app, logger)
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
