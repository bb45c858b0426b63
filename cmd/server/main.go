package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lifeline-ems/service-dispatch/internal/application"
	"github.com/lifeline-ems/service-dispatch/internal/clients"
	"github.com/lifeline-ems/service-dispatch/internal/config"
	"github.com/lifeline-ems/service-dispatch/internal/events"
	"github.com/lifeline-ems/service-dispatch/internal/handler"
	"github.com/lifeline-ems/service-dispatch/internal/platform/database"
	"github.com/lifeline-ems/service-dispatch/internal/platform/health"
	"github.com/lifeline-ems/service-dispatch/internal/platform/kafka"
	"github.com/lifeline-ems/service-dispatch/internal/platform/logger"
	"github.com/lifeline-ems/service-dispatch/internal/platform/middleware"
	"github.com/lifeline-ems/service-dispatch/internal/repository"
	"github.com/lifeline-ems/service-dispatch/internal/simulation"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-dispatch")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-dispatch",
		zap.String("port", cfg.Port),
		zap.String("route_provider", cfg.RouteProvider),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if err := db.AutoMigrate(&repository.CaseModel{}); err != nil {
		log.Fatal("failed to run auto-migration", zap.Error(err))
	}
	log.Info("database migration completed")

	// Initialize Kafka producer and event publisher
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()
	publisher := events.NewPublisher(kafkaProducer, log)

	// Initialize repository
	caseRepo := repository.NewGormCaseRepository(db)

	// Initialize external service clients
	hospitalClient := clients.NewHospitalClient(cfg.HospitalServiceURL)
	ambulanceClient := clients.NewAmbulanceClient(cfg.AmbulanceServiceURL)

	var routeProvider clients.RouteProvider
	switch cfg.RouteProvider {
	case config.RouteProviderGoogle:
		googleClient, err := clients.NewGoogleRouteClient(cfg.GoogleAPIKey)
		if err != nil {
			log.Fatal("failed to create google route client", zap.Error(err))
		}
		routeProvider = googleClient
	default:
		routeProvider = clients.NewRouteServiceClient(cfg.RouteServiceURL)
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		routeProvider = clients.NewCachingRouteProvider(routeProvider, rdb, 5*time.Minute, log)
		log.Info("route cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	// Initialize motion simulator
	simManager := simulation.NewManager(
		simulation.Config{
			TotalTicks:   cfg.Simulation.TotalTicks,
			TickInterval: cfg.Simulation.TickInterval,
		},
		caseRepo,
		ambulanceClient,
		publisher,
		log,
	)

	// Initialize application services
	dispatchService := application.NewDispatchService(
		hospitalClient,
		ambulanceClient,
		routeProvider,
		caseRepo,
		simManager,
		publisher,
		log,
	)
	caseService := application.NewCaseService(caseRepo, ambulanceClient, publisher, log)

	// Initialize HTTP handlers
	dispatchHandler := handler.NewDispatchHandler(dispatchService)
	caseHandler := handler.NewCaseHandler(caseService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-dispatch")
	healthHandler.RegisterRoutes(router)

	// Register routes
	dispatchHandler.RegisterRoutes(&router.RouterGroup)
	caseHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-dispatch...")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	// Drain running simulations
	if err := simManager.Stop(shutdownCtx); err != nil {
		log.Error("simulation manager stopped with active runs", zap.Error(err))
	}

	log.Info("service-dispatch stopped")
}
