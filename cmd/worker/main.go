package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wms-platform/picking-engine/internal/activities"
	"github.com/wms-platform/picking-engine/internal/application"
	"github.com/wms-platform/picking-engine/internal/infrastructure/clients"
	mongoRepo "github.com/wms-platform/picking-engine/internal/infrastructure/mongodb"
	"github.com/wms-platform/picking-engine/internal/workflows"
	"github.com/wms-platform/picking-engine/pkg/cloudevents"
	"github.com/wms-platform/picking-engine/pkg/config"
	"github.com/wms-platform/picking-engine/pkg/logging"
	"github.com/wms-platform/picking-engine/pkg/metrics"
	"github.com/wms-platform/picking-engine/pkg/mongodb"
	"github.com/wms-platform/picking-engine/pkg/resilience"
	"github.com/wms-platform/picking-engine/pkg/temporal"
	"github.com/wms-platform/picking-engine/pkg/tracing"
)

const serviceName = "picking-worker"

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

	logger.Info("Starting picking worker")
	ctx := context.Background()

	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracerProvider.Shutdown(shutdownCtx)
		}()
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())

	// Events staged here are relayed by the API's outbox publisher
	eventFactory := cloudevents.NewEventFactory("/picking-engine")
	instr := mongodb.NewInstrumentation(cfg.MongoDB.Database, m, logger)
	repo := mongoRepo.NewBatchRepository(mongoClient, eventFactory, instr)

	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("order-service"), logger, m)
	orderClient := clients.NewOrderServiceClient(cfg.Picking.OrderServiceURL, cfg.Picking.OrderTimeout, breaker, logger)

	service := application.NewPickingService(repo, orderClient, logger, m, application.ServiceConfig{
		MaxOrdersPerBatch: cfg.Picking.MaxOrdersPerBatch,
	})

	temporalClient, err := temporal.NewClient(cfg.Temporal)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.WithFields(map[string]any{
		"hostPort":  cfg.Temporal.HostPort,
		"namespace": cfg.Temporal.Namespace,
	}).Info("Connected to Temporal")

	w := temporalClient.NewWorker()
	workflows.Register(w)
	w.RegisterActivity(activities.NewPickingActivities(service, m))
	logger.Info("Registered workflows and activities",
		"workflows", []string{temporal.WorkflowNames.OrderBatching, temporal.WorkflowNames.BatchPicking},
		"activities", []string{
			temporal.ActivityNames.FormBatches,
			temporal.ActivityNames.AssignBatch,
			temporal.ActivityNames.StartBatch,
			temporal.ActivityNames.MarkItemPicked,
		},
	)

	if err := w.Start(); err != nil {
		logger.WithError(err).Error("Failed to start worker")
		os.Exit(1)
	}
	logger.Info("Worker started", "taskQueue", cfg.Temporal.TaskQueue)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	w.Stop()
	logger.Info("Worker stopped")
}
