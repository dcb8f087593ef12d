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

	"github.com/noah-isme/gema-classroom-api/internal/config"
	"github.com/noah-isme/gema-classroom-api/internal/database"
	"github.com/noah-isme/gema-classroom-api/internal/handler"
	"github.com/noah-isme/gema-classroom-api/internal/middleware"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
	"github.com/noah-isme/gema-classroom-api/internal/router"
	"github.com/noah-isme/gema-classroom-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Assignment{},
		&models.Question{},
		&models.Submission{},
		&models.Answer{},
		&models.GradeRecord{},
		&models.ActivityLog{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats url not configured; assignment events stay in-process")
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to access database pool: %v", err)
	}
	healthProbes := map[string]handler.HealthProbe{
		"postgres": sqlDB.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
	if natsConn != nil {
		healthProbes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats %s", natsConn.Status())
			}
			return nil
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	gradeRecordRepo := repository.NewGradeRecordRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.EventsChannel, natsConn, validate, logger)
	gradeBookService := service.NewGradeBookService(gradeRecordRepo, logger)

	deps := service.SubmissionEventDeps{
		Notifications: notificationService,
		GradeBook:     gradeBookService,
		Activity:      activityService,
		Guardians:     studentRepo,
		Channel:       cfg.EventsChannel,
	}
	if natsConn != nil {
		deps.Publisher = natsConn
	}
	events := service.NewSubmissionEventDispatcher(deps, logger)

	assignmentService := service.NewAssignmentService(assignmentRepo, studentRepo, validate, service.RandomPinGenerator(), activityService, redisClient, cfg.AssignmentCacheTTL, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, studentRepo, validate, events, logger)
	reportService := service.NewAssignmentReportService(assignmentRepo, submissionRepo, redisClient, cfg.ReportCacheTTL, logger)
	dashboardService := service.NewStudentDashboardService(assignmentRepo, submissionRepo, studentRepo, redisClient, cfg.DashboardCacheTTL, logger)
	studentService := service.NewStudentService(studentRepo, validate, activityService, logger)

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()
	notificationService.Start(appCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler:        handler.NewAssignmentHandler(assignmentService, logger),
		StudentAssignmentHandler: handler.NewStudentAssignmentHandler(assignmentService, submissionService, logger),
		SubmissionHandler:        handler.NewSubmissionHandler(submissionService, logger),
		GradingHandler:           handler.NewGradingHandler(submissionService, logger),
		ReportHandler:            handler.NewAssignmentReportHandler(reportService, logger),
		GradeBookHandler:         handler.NewGradeBookHandler(gradeBookService, logger),
		DashboardHandler:         handler.NewStudentDashboardHandler(dashboardService, logger),
		StudentHandler:           handler.NewStudentHandler(studentService, logger),
		NotificationHandler:      handler.NewNotificationHandler(notificationService, logger, cfg.NotificationStreamTTL),
		ActivityHandler:          handler.NewActivityHandler(activityService, logger),
		HealthProbes:             healthProbes,
		JWTMiddleware:            middleware.JWTProtected(middleware.JWTOptions{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Leeway: 30 * time.Second}),
		AnswerRateLimit:          middleware.RateLimit("answers", cfg.AnswerRateLimitPerMin, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancelApp)
}

func waitForShutdown(app *fiber.App, cancelApp context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancelApp()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
