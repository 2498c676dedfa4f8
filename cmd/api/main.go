package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/picking-engine/api"
	"github.com/wms-platform/picking-engine/internal/application"
	"github.com/wms-platform/picking-engine/internal/domain"
	"github.com/wms-platform/picking-engine/internal/infrastructure/clients"
	mongoRepo "github.com/wms-platform/picking-engine/internal/infrastructure/mongodb"
	"github.com/wms-platform/picking-engine/pkg/cloudevents"
	"github.com/wms-platform/picking-engine/pkg/config"
	"github.com/wms-platform/picking-engine/pkg/contracts/asyncapi"
	"github.com/wms-platform/picking-engine/pkg/contracts/openapi"
	"github.com/wms-platform/picking-engine/pkg/kafka"
	"github.com/wms-platform/picking-engine/pkg/logging"
	"github.com/wms-platform/picking-engine/pkg/metrics"
	"github.com/wms-platform/picking-engine/pkg/middleware"
	"github.com/wms-platform/picking-engine/pkg/mongodb"
	"github.com/wms-platform/picking-engine/pkg/outbox"
	"github.com/wms-platform/picking-engine/pkg/resilience"
	"github.com/wms-platform/picking-engine/pkg/tracing"
)

const serviceName = "picking-engine"

func main() {
	cfg, err := config.Load(serviceName)

	logConfig := logging.DefaultConfig(serviceName)
	if cfg != nil {
		logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	}
	logger := logging.New(logConfig)
	logger.SetDefault()

	if err != nil {
		logger.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	logger.Info("Starting picking-engine API")
	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	kafkaProducer := kafka.NewProducer(cfg.Kafka)
	defer kafkaProducer.Close()
	producer := kafka.NewInstrumentedProducer(kafkaProducer, m, logger)
	logger.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)

	eventFactory := cloudevents.NewEventFactory("/" + serviceName)
	instr := mongodb.NewInstrumentation(cfg.MongoDB.Database, m, logger)
	repo := mongoRepo.NewBatchRepository(mongoClient, eventFactory, instr)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ensure picking batch indexes")
	}

	publisher, err := newOutboxPublisher(cfg, repo, producer, logger, m)
	if err != nil {
		logger.WithError(err).Error("Failed to build outbox publisher")
		os.Exit(1)
	}
	if err := publisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer publisher.Stop()
	logger.Info("Outbox publisher started")

	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("order-service"), logger, m)
	orderClient := clients.NewOrderServiceClient(cfg.Picking.OrderServiceURL, cfg.Picking.OrderTimeout, breaker, logger)

	service := application.NewPickingService(repo, orderClient, logger, m, application.ServiceConfig{
		MaxOrdersPerBatch: cfg.Picking.MaxOrdersPerBatch,
	})

	var contract middleware.RequestValidator
	if cfg.Picking.ValidateRequests {
		v, err := openapi.NewValidatorFromBytes(api.OpenAPI)
		if err != nil {
			logger.WithError(err).Error("Failed to load OpenAPI contract")
			os.Exit(1)
		}
		contract = v
	}

	router, err := newRouter(service, logger, m, contract, func(ctx context.Context) error {
		return mongoClient.HealthCheck(ctx)
	})
	if err != nil {
		logger.WithError(err).Error("Failed to build router")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// newRouter wires middleware, probes and the v1 API. contract may be nil.
func newRouter(
	service BatchService,
	logger *logging.Logger,
	m *metrics.Metrics,
	contract middleware.RequestValidator,
	ready func(ctx context.Context) error,
) (*gin.Engine, error) {
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger)
	middlewareConfig.Metrics = m
	middlewareConfig.EnableTracing = true
	middleware.Setup(router, middlewareConfig)

	if err := middleware.RegisterValidation("locationcode", func(fl validator.FieldLevel) bool {
		return domain.ValidateLocationCode(fl.Field().String()) == nil
	}); err != nil {
		return nil, err
	}

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, ready))
	if m != nil {
		router.GET("/metrics", middleware.MetricsEndpoint(m))
	}

	v1 := router.Group("/api/v1")
	if contract != nil {
		v1.Use(middleware.ContractValidation(contract, logger))
	}
	registerRoutes(v1, service, logger)

	return router, nil
}

func newOutboxPublisher(
	cfg *config.Config,
	repo *mongoRepo.BatchRepository,
	producer kafka.EventPublisher,
	logger *logging.Logger,
	m *metrics.Metrics,
) (*outbox.Publisher, error) {
	publisherConfig := outbox.DefaultPublisherConfig()
	publisherConfig.PollInterval = cfg.Outbox.PollInterval
	publisherConfig.BatchSize = cfg.Outbox.BatchSize

	publisher := outbox.NewPublisher(repo.OutboxRepository(), producer, logger, m, publisherConfig)
	if !cfg.Picking.ValidateEvents {
		return publisher, nil
	}

	eventValidator, err := asyncapi.NewEventValidatorFromBytes(api.AsyncAPI)
	if err != nil {
		return nil, err
	}
	return publisher.WithValidator(eventValidator), nil
}
