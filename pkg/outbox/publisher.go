package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/picking-engine/pkg/cloudevents"
	"github.com/wms-platform/picking-engine/pkg/kafka"
	"github.com/wms-platform/picking-engine/pkg/logging"
	"github.com/wms-platform/picking-engine/pkg/metrics"
)

// ErrPublisherRunning is returned by Start on a running publisher
var ErrPublisherRunning = errors.New("publisher already running")

// ErrPublisherStopped is returned by Stop on a publisher that is not running
var ErrPublisherStopped = errors.New("publisher not running")

// EventValidator checks an event against its published contract before it leaves the outbox
type EventValidator interface {
	ValidateEvent(event *cloudevents.WMSCloudEvent) error
}

// PublisherConfig holds configuration for the outbox publisher
type PublisherConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	DeadLetterTopic string
}

// DefaultPublisherConfig returns default configuration
func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		PollInterval:    time.Second,
		BatchSize:       100,
		DeadLetterTopic: kafka.Topics.DeadLetter,
	}
}

// Publisher relays outbox events to Kafka
type Publisher struct {
	repo       Repository
	producer   kafka.EventPublisher
	validator  EventValidator
	logger     *logging.Logger
	metrics    *metrics.Metrics
	interval   time.Duration
	batchSize  int
	deadLetter string

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	stoppedCh    chan struct{}
	publishedCnt int
	failedCnt    int
}

// NewPublisher creates a new outbox publisher
func NewPublisher(
	repo Repository,
	producer kafka.EventPublisher,
	logger *logging.Logger,
	m *metrics.Metrics,
	config *PublisherConfig,
) *Publisher {
	if config == nil {
		config = DefaultPublisherConfig()
	}

	return &Publisher{
		repo:       repo,
		producer:   producer,
		logger:     logger.WithComponent("outbox-publisher"),
		metrics:    m,
		interval:   config.PollInterval,
		batchSize:  config.BatchSize,
		deadLetter: config.DeadLetterTopic,
	}
}

// WithValidator makes the publisher reject events that break their contract
func (p *Publisher) WithValidator(v EventValidator) *Publisher {
	p.validator = v
	return p
}

// Start runs the poll loop in the background until Stop or ctx cancellation
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPublisherRunning
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.stoppedCh = make(chan struct{})

	p.logger.Info("Starting outbox publisher", "interval", p.interval, "batchSize", p.batchSize)
	go p.run(ctx, p.stopCh, p.stoppedCh)
	return nil
}

// Stop halts the poll loop and waits for the in-flight round to finish
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPublisherStopped
	}
	stopCh, stoppedCh := p.stopCh, p.stoppedCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)
	<-stoppedCh

	published, failed := p.Stats()
	p.logger.Info("Outbox publisher stopped", "published", published, "failed", failed)
	return nil
}

// Stats returns the delivered and failed attempt counters
func (p *Publisher) Stats() (published, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publishedCnt, p.failedCnt
}

func (p *Publisher) run(ctx context.Context, stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.ProcessOnce(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			p.logger.Info("Outbox publisher context cancelled")
			return
		}
	}
}

// ProcessOnce relays one page of pending events and returns how many were delivered
func (p *Publisher) ProcessOnce(ctx context.Context) int {
	events, err := p.repo.FindUnpublished(ctx, p.batchSize)
	if err != nil {
		p.logger.WithError(err).Error("Failed to find unpublished events")
		return 0
	}

	if p.metrics != nil {
		if pending, err := p.repo.CountPending(ctx); err == nil {
			p.metrics.SetOutboxPending(int(pending))
		}
	}

	delivered := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.handleFailure(ctx, event, err)
			continue
		}

		p.mu.Lock()
		p.publishedCnt++
		p.mu.Unlock()
		delivered++

		if p.metrics != nil {
			p.metrics.RecordOutboxPublish(event.EventType, true)
		}
		if err := p.repo.MarkPublished(ctx, event.ID); err != nil {
			p.logger.WithError(err).Error("Failed to mark event as published", "eventId", event.ID)
		}
	}
	return delivered
}

func (p *Publisher) publish(ctx context.Context, event *OutboxEvent) error {
	cloudEvent, err := event.ToCloudEvent()
	if err != nil {
		return err
	}
	if p.validator != nil {
		if err := p.validator.ValidateEvent(cloudEvent); err != nil {
			return fmt.Errorf("event %s violates contract: %w", event.EventType, err)
		}
	}
	return p.producer.PublishEvent(ctx, event.Topic, cloudEvent)
}

func (p *Publisher) handleFailure(ctx context.Context, event *OutboxEvent, cause error) {
	p.mu.Lock()
	p.failedCnt++
	p.mu.Unlock()

	p.logger.WithError(cause).Error("Failed to publish outbox event",
		"eventId", event.ID,
		"eventType", event.EventType,
		"aggregateId", event.AggregateID,
		"retryCount", event.RetryCount,
	)
	if p.metrics != nil {
		p.metrics.RecordOutboxPublish(event.EventType, false)
	}

	if event.RetryCount+1 < event.MaxRetries || p.deadLetter == "" {
		if err := p.repo.IncrementRetry(ctx, event.ID, cause.Error()); err != nil {
			p.logger.WithError(err).Error("Failed to increment retry count", "eventId", event.ID)
		}
		if p.metrics != nil {
			p.metrics.RecordOutboxRetry(event.EventType)
		}
		return
	}

	cloudEvent, err := event.ToCloudEvent()
	if err == nil {
		err = p.producer.PublishEvent(ctx, p.deadLetter, cloudEvent)
	}
	if err != nil {
		p.logger.WithError(err).Error("Failed to dead-letter outbox event", "eventId", event.ID)
		if err := p.repo.IncrementRetry(ctx, event.ID, cause.Error()); err != nil {
			p.logger.WithError(err).Error("Failed to increment retry count", "eventId", event.ID)
		}
		return
	}

	p.logger.Warn("Outbox event dead-lettered", "eventId", event.ID, "topic", p.deadLetter)
	if err := p.repo.MarkDeadLettered(ctx, event.ID, cause.Error()); err != nil {
		p.logger.WithError(err).Error("Failed to mark event as dead-lettered", "eventId", event.ID)
	}
}
