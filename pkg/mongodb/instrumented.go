package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/picking-engine/pkg/logging"
	"github.com/wms-platform/picking-engine/pkg/metrics"
)

// Instrumentation wraps collection calls with a span, metrics and a query log
type Instrumentation struct {
	database string
	metrics  *metrics.Metrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewInstrumentation creates instrumentation for one database. Nil metrics or logger are skipped.
func NewInstrumentation(database string, m *metrics.Metrics, logger *logging.Logger) *Instrumentation {
	return &Instrumentation{
		database: database,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("mongodb"),
	}
}

// Observe runs fn as one named operation on collection
func (i *Instrumentation) Observe(ctx context.Context, collection, operation string, fn func(ctx context.Context) error) error {
	ctx, span := i.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(i.database),
			semconv.DBMongoDBCollectionKey.String(collection),
			semconv.DBOperationKey.String(operation),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	// A miss is a normal outcome for lookups
	success := err == nil || errors.Is(err, mongo.ErrNoDocuments)

	if i.metrics != nil {
		i.metrics.RecordMongoDBOperation(collection, operation, success, duration)
	}
	if i.logger != nil {
		var logErr error
		if !success {
			logErr = err
		}
		i.logger.DatabaseQuery(ctx, collection, operation, duration, logErr)
	}

	if !success {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}
