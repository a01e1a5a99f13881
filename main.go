package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartcity/config"
	"smartcity/internal/media"
	"smartcity/internal/messaging"
	"smartcity/internal/ratelimit"
	"smartcity/internal/repository"
	"smartcity/internal/router"
	"smartcity/internal/service"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := repository.CreateSchema(ctx, db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	logger.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	issueRepo := repository.NewIssueRepository(db)
	pollRepo := repository.NewPollRepository(db)
	reportRepo := repository.NewReportRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	chatRepo := repository.NewChatRepository(db)

	fanout := service.NewFanOut(userRepo, notificationRepo, logger)
	var notifier service.Notifier = fanout

	if cfg.RabbitMQ.Enabled() {
		rmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, cfg.RabbitMQ.User, cfg.RabbitMQ.Password, logger)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer rmq.Close()

		consumer := messaging.NewConsumer(rmq, fanout, notificationRepo, logger)
		consumer.Start()
		defer consumer.Stop()

		notifier = messaging.NewPublisher(rmq, fanout, logger)
	} else {
		logger.Info("rabbitmq not configured, notifications are delivered in-process")
	}

	var uploader media.Uploader = media.Disabled{}
	if cfg.Cloudinary.Enabled() {
		cld, err := media.NewCloudinary(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			return fmt.Errorf("init cloudinary: %w", err)
		}
		uploader = cld
	} else {
		logger.Warn("cloudinary not configured, file uploads are skipped")
	}

	var authLimiter ratelimit.Limiter
	if cfg.Redis.Enabled() {
		client, err := ratelimit.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		authLimiter = ratelimit.NewRedisLimiter(client, "auth", cfg.RateLimit.LoginAttempts, cfg.RateLimit.Window())
	}

	// Initialize services
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Lifetime())

	gin.SetMode(gin.ReleaseMode)
	r := router.New(router.Deps{
		Auth:          service.NewAuthService(userRepo, tokens),
		Issues:        service.NewIssueService(issueRepo, userRepo, notifier, logger),
		Polls:         service.NewPollService(pollRepo, notifier, logger),
		Users:         service.NewUserService(userRepo, departmentRepo),
		Departments:   service.NewDepartmentService(departmentRepo),
		Reports:       service.NewReportService(reportRepo, issueRepo, notifier, logger),
		Notifications: service.NewNotificationService(notificationRepo),
		Stats:         service.NewStatsService(userRepo, issueRepo, pollRepo, reportRepo),
		Chats:         service.NewChatService(chatRepo, userRepo, notifier, logger),
		Media:         uploader,
		AuthLimiter:   authLimiter,
		Cookie:        cfg.Cookie,
		CORS:          cfg.CORS,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("smart city api starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
