package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"google.golang.org/api/idtoken"

	"github.com/mitcstore/mitc-api/internal/config"
	"github.com/mitcstore/mitc-api/internal/database"
	"github.com/mitcstore/mitc-api/internal/handler"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/realtime"
	"github.com/mitcstore/mitc-api/internal/repository"
	"github.com/mitcstore/mitc-api/internal/router"
	"github.com/mitcstore/mitc-api/internal/service"
	cloud "github.com/mitcstore/mitc-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient == nil {
		logger.Warn().Msg("redis disabled: token revocation, password reset and analytics cache are off")
	} else {
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	broker := realtime.NewBroker(redisClient, natsConn, cfg.RealtimeChannel, logger)
	if err := broker.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start realtime broker")
	}

	var storage service.ImageStorage
	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("image uploads disabled")
	} else {
		storage = uploader
	}

	var google service.GoogleVerifier
	if cfg.GoogleClientID != "" {
		tokenValidator, err := idtoken.NewValidator(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create google token validator")
		}
		google = tokenValidator
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	productRepo := repository.NewProductRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	chatRepo := repository.NewChatRepository(db)
	imageRepo := repository.NewImageRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	leadRepo := repository.NewLeadRepository(db)

	chatService := service.NewChatService(chatRepo, broker, logger)
	authService := service.NewAuthService(userRepo, credentialRepo, productRepo, redisClient, google, chatService, validate, service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.JWTTTL,
		ResetTTL:       cfg.PasswordResetTTL,
		AdminEmail:     cfg.AdminEmail,
		GoogleClientID: cfg.GoogleClientID,
		KeyPrefix:      cfg.RealtimeChannel,
	}, logger)
	productService := service.NewProductService(productRepo, validate, logger)
	reviewService := service.NewReviewService(reviewRepo, userRepo, productRepo, validate, logger)
	accountService := service.NewAccountService(userRepo, credentialRepo, reviewRepo, chatService, logger)
	uploadService := service.NewUploadService(storage, imageRepo, cfg.UploadMaxMB, logger)
	analyticsService := service.NewAnalyticsService(analyticsRepo, redisClient, cfg.AnalyticsCacheTTL, cfg.RealtimeChannel, cfg.VisitSalt, validate, logger)
	leadService := service.NewLeadService(leadRepo, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) << 20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})

	healthChecks := map[string]handler.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if natsConn != nil {
		healthChecks["nats"] = func(context.Context) error {
			if status := natsConn.Status(); status != nats.CONNECTED {
				return fmt.Errorf("nats connection %s", status)
			}
			return nil
		}
	}

	router.Register(app, cfg, router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(authService, cfg.AppEnv == "development", logger),
		AccountHandler:   handler.NewAccountHandler(accountService, authService, logger),
		ProductHandler:   handler.NewProductHandler(productService, logger),
		ReviewHandler:    handler.NewReviewHandler(reviewService, logger),
		ChatHandler:      handler.NewChatHandler(chatService, authService, service.SessionOptions{RatePerSecond: cfg.ChatRatePerSecond, Burst: cfg.ChatBurst}, logger),
		UploadHandler:    handler.NewUploadHandler(uploadService, logger),
		AnalyticsHandler: handler.NewAnalyticsHandler(analyticsService, logger),
		LeadHandler:      handler.NewLeadHandler(leadService, logger),
		HealthChecks:     healthChecks,
		JWTMiddleware: middleware.JWTProtected(middleware.JWTConfig{
			Secret:      cfg.JWTSecret,
			Revocations: authService,
			Roles:       authService,
			Optional:    true,
		}),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
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
