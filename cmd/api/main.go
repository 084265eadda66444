package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/usst-spm/course-api/internal/config"
	"github.com/usst-spm/course-api/internal/database"
	"github.com/usst-spm/course-api/internal/handler"
	"github.com/usst-spm/course-api/internal/middleware"
	"github.com/usst-spm/course-api/internal/repository"
	"github.com/usst-spm/course-api/internal/router"
	"github.com/usst-spm/course-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional; the engine degrades to uncached reads
	// and no event fan-out when they are absent.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	userRepo := repository.NewUserRepository(db)

	eventService := service.NewEventService(redisClient, cfg.EventChannel, natsConn, cfg.EventSubject, logger)
	activityService := service.NewActivityService(activityRepo, validate, logger)

	assignmentService := service.NewAssignmentService(
		assignmentRepo, submissionRepo, gradeRepo, attachmentRepo,
		validate, activityService, eventService, logger,
	)
	versionChainService := service.NewVersionChainService(
		assignmentRepo, attachmentRepo, validate, activityService, eventService, logger,
	)
	submissionService := service.NewSubmissionService(
		assignmentRepo, submissionRepo, gradeRepo, attachmentRepo,
		validate, activityService, eventService, logger,
	)
	gradingService := service.NewGradingService(
		submissionRepo, gradeRepo, userRepo, validate, activityService, eventService, logger,
	)
	announcementService := service.NewAnnouncementService(
		announcementRepo, redisClient, cfg.AnnouncementTTL, validate, logger,
	)

	assignmentHandler := handler.NewAssignmentHandler(assignmentService, versionChainService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, logger)
	announcementHandler := handler.NewAnnouncementHandler(announcementService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler:   assignmentHandler,
		SubmissionHandler:   submissionHandler,
		GradingHandler:      gradingHandler,
		AnnouncementHandler: announcementHandler,
		ActivityHandler:     activityHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cfg)
}

func waitForShutdown(app *fiber.App, cfg config.Config) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
