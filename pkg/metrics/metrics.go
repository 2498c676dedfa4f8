package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the picking engine's Prometheus collectors
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPending   prometheus.Gauge
	OutboxPublished *prometheus.CounterVec
	OutboxRetries   *prometheus.CounterVec

	// Temporal metrics
	ActivitiesCompleted *prometheus.CounterVec
	ActivityDuration    *prometheus.HistogramVec

	// Picking metrics
	BatchesFormed       *prometheus.CounterVec
	OrdersPerBatch      *prometheus.HistogramVec
	BatchesCompleted    *prometheus.CounterVec
	ItemsPicked         *prometheus.CounterVec
	UnitsPicked         *prometheus.CounterVec
	RouteDistance       *prometheus.HistogramVec
	RouteFailures       *prometheus.CounterVec
	ConcurrencyConflict *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a Metrics instance backed by its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"service", "method", "path", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"service", "method", "path"})

	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "http_requests_in_flight",
		Help:        "Number of HTTP requests currently being processed",
		ConstLabels: prometheus.Labels{"service": config.ServiceName},
	})

	m.KafkaEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "kafka_events_published_total",
		Help:      "Total number of Kafka events published",
	}, []string{"service", "topic", "event_type", "status"})

	m.KafkaPublishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "kafka_publish_duration_seconds",
		Help:      "Kafka publish duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"service", "topic"})

	m.MongoDBOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "mongodb_operations_total",
		Help:      "Total number of MongoDB operations",
	}, []string{"service", "collection", "operation", "status"})

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "mongodb_operation_duration_seconds",
		Help:      "MongoDB operation duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"service", "collection", "operation"})

	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "outbox_pending_events",
		Help:        "Number of outbox events waiting to be relayed",
		ConstLabels: prometheus.Labels{"service": config.ServiceName},
	})

	m.OutboxPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "outbox_events_relayed_total",
		Help:      "Total number of outbox events relayed to the broker",
	}, []string{"service", "event_type", "status"})

	m.OutboxRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "outbox_event_retries_total",
		Help:      "Total number of outbox relay retries",
	}, []string{"service", "event_type"})

	m.ActivitiesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "temporal_activities_completed_total",
		Help:      "Total number of Temporal activities completed",
	}, []string{"service", "activity_type", "status"})

	m.ActivityDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "temporal_activity_duration_seconds",
		Help:      "Temporal activity duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "activity_type"})

	m.BatchesFormed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "picking_batches_formed_total",
		Help:      "Total number of picking batches formed",
	}, []string{"service"})

	m.OrdersPerBatch = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "picking_orders_per_batch",
		Help:      "Number of orders grouped into each batch",
		Buckets:   []float64{1, 2, 3, 4, 5, 8, 10},
	}, []string{"service"})

	m.BatchesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "picking_batches_completed_total",
		Help:      "Total number of picking batches completed",
	}, []string{"service"})

	m.ItemsPicked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "picking_items_picked_total",
		Help:      "Total number of batch items marked as picked",
	}, []string{"service"})

	m.UnitsPicked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "picking_units_picked_total",
		Help:      "Total number of units picked",
	}, []string{"service"})

	m.RouteDistance = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "picking_route_distance",
		Help:      "Total walking distance of optimised routes",
		Buckets:   []float64{0, 5, 10, 20, 50, 100, 200, 500},
	}, []string{"service"})

	m.RouteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "picking_route_failures_total",
		Help:      "Total number of route computations rejected",
	}, []string{"service", "reason"})

	m.ConcurrencyConflict = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "picking_concurrency_conflicts_total",
		Help:      "Total number of optimistic concurrency conflicts on batches",
	}, []string{"service", "operation"})

	m.CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"service", "name"})

	m.CircuitBreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of circuit breaker trips",
	}, []string{"service", "name"})

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
		m.KafkaEventsPublished, m.KafkaPublishDuration,
		m.MongoDBOperations, m.MongoDBOperationDuration,
		m.OutboxPending, m.OutboxPublished, m.OutboxRetries,
		m.ActivitiesCompleted, m.ActivityDuration,
		m.BatchesFormed, m.OrdersPerBatch, m.BatchesCompleted,
		m.ItemsPicked, m.UnitsPicked, m.RouteDistance, m.RouteFailures,
		m.ConcurrencyConflict,
		m.CircuitBreakerState, m.CircuitBreakerTrips,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, status(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of unrelayed outbox events
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records the relay outcome of one outbox event
func (m *Metrics) RecordOutboxPublish(eventType string, success bool) {
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, status(success)).Inc()
}

// RecordOutboxRetry records a relay retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	m.OutboxRetries.WithLabelValues(m.serviceName, eventType).Inc()
}

// RecordActivityCompleted records a Temporal activity outcome
func (m *Metrics) RecordActivityCompleted(activityType string, success bool, duration time.Duration) {
	m.ActivitiesCompleted.WithLabelValues(m.serviceName, activityType, status(success)).Inc()
	m.ActivityDuration.WithLabelValues(m.serviceName, activityType).Observe(duration.Seconds())
}

// RecordBatchFormed records a new batch and its order count
func (m *Metrics) RecordBatchFormed(orderCount int) {
	m.BatchesFormed.WithLabelValues(m.serviceName).Inc()
	m.OrdersPerBatch.WithLabelValues(m.serviceName).Observe(float64(orderCount))
}

// RecordBatchCompleted records a completed batch
func (m *Metrics) RecordBatchCompleted() {
	m.BatchesCompleted.WithLabelValues(m.serviceName).Inc()
}

// RecordItemPicked records one item confirmation and the units it covered
func (m *Metrics) RecordItemPicked(units int) {
	m.ItemsPicked.WithLabelValues(m.serviceName).Inc()
	m.UnitsPicked.WithLabelValues(m.serviceName).Add(float64(units))
}

// RecordRouteDistance records an optimised route's total distance
func (m *Metrics) RecordRouteDistance(distance int) {
	m.RouteDistance.WithLabelValues(m.serviceName).Observe(float64(distance))
}

// RecordRouteFailure records a rejected route computation
func (m *Metrics) RecordRouteFailure(reason string) {
	m.RouteFailures.WithLabelValues(m.serviceName, reason).Inc()
}

// RecordConcurrencyConflict records an optimistic concurrency conflict
func (m *Metrics) RecordConcurrencyConflict(operation string) {
	m.ConcurrencyConflict.WithLabelValues(m.serviceName, operation).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
