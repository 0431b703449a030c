package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/light-quiz/quiz-service/internal/cache"
	"github.com/light-quiz/quiz-service/internal/config"
	"github.com/light-quiz/quiz-service/internal/events"
	"github.com/light-quiz/quiz-service/internal/grading"
	"github.com/light-quiz/quiz-service/internal/handlers"
	"github.com/light-quiz/quiz-service/internal/ratelimit"
	"github.com/light-quiz/quiz-service/internal/repositories/postgres"
	"github.com/light-quiz/quiz-service/internal/scheduler"
	"github.com/light-quiz/quiz-service/internal/services"
	"github.com/light-quiz/quiz-service/internal/utils"
	"github.com/light-quiz/quiz-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	var publisher events.EventPublisher
	if cfg.EventsEnabled {
		publisher, err = events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: strings.Split(cfg.KafkaBrokers, ","),
			TopicName:    cfg.NotificationTopic,
			Logger:       utils.ToSlogLogger(logger),
		})
		if err != nil {
			logger.Error("Failed to create event publisher", "error", err)
			os.Exit(1)
		}
	} else {
		publisher = events.NewMockEventPublisher(utils.ToSlogLogger(logger))
	}
	defer publisher.Close()

	limiter := ratelimit.New(cfg.GraderRateLimit, cfg.GraderRateWindow, cfg.GraderQueueLimit)
	defer limiter.Close()

	gradingClient := grading.NewClient(grading.ClientConfig{
		BaseURL: cfg.GraderBaseURL,
		APIKey:  cfg.GraderAPIKey,
		Model:   cfg.GraderModel,
	}, limiter, logger)

	repo := postgres.NewRepository(db)
	clock := utils.NewClock()
	validator := utils.NewValidator()
	cacheService := cache.NewRedisCache(redisClient, logger)

	gradingService := services.NewGradingService(repo, gradingClient, publisher, clock, logger)

	sched := scheduler.New(repo, clock, logger, cfg.SchedulerPollInterval)
	attemptService := services.NewAttemptService(
		repo, sched, gradingService, publisher, cacheService,
		clock, validator, logger, cfg.GracePeriod,
	)
	sched.SetHandler(attemptService.AutoSubmit)
	sched.Start()
	defer sched.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	hm := handlers.NewHandlerManager(attemptService, validator, logger, handlers.RouterConfig{
		RateLimit:       cfg.HTTPRateLimit,
		RateLimitWindow: cfg.HTTPRateWindow,
	})
	defer hm.Close()
	hm.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting quiz service", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
}
