package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/picking-engine/pkg/cloudevents"
)

// MessageWriter is the subset of *kafka.Writer the producer needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterFactory builds a writer for a topic
type WriterFactory func(topic string) MessageWriter

// Producer publishes CloudEvents to Kafka, one writer per topic
type Producer struct {
	mu        sync.Mutex
	writers   map[string]MessageWriter
	newWriter WriterFactory
}

// NewProducer creates a producer backed by kafka-go writers
func NewProducer(config *Config) *Producer {
	return NewProducerWithFactory(func(topic string) MessageWriter {
		return &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    config.BatchSize,
			BatchTimeout: config.BatchTimeout,
			WriteTimeout: config.WriteTimeout,
			RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
			Transport:    &kafka.Transport{ClientID: config.ClientID},
		}
	})
}

// NewProducerWithFactory creates a producer with a custom writer factory
func NewProducerWithFactory(factory WriterFactory) *Producer {
	return &Producer{
		writers:   make(map[string]MessageWriter),
		newWriter: factory,
	}
}

func (p *Producer) writer(topic string) MessageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := p.newWriter(topic)
	p.writers[topic] = w
	return w
}

// PublishEvent publishes a CloudEvent to topic
func (p *Producer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	return p.PublishBatch(ctx, topic, []*cloudevents.WMSCloudEvent{event})
}

// PublishBatch publishes events to topic in one write
func (p *Producer) PublishBatch(ctx context.Context, topic string, events []*cloudevents.WMSCloudEvent) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := ToMessage(event)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}

	if err := p.writer(topic).WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// ToMessage encodes a CloudEvent in structured mode with ce-* headers.
// Messages are keyed by subject so every event of a batch lands on one partition.
func ToMessage(event *cloudevents.WMSCloudEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	headers := []kafka.Header{
		{Key: "ce-specversion", Value: []byte(event.SpecVersion)},
		{Key: "ce-type", Value: []byte(event.Type)},
		{Key: "ce-source", Value: []byte(event.Source)},
		{Key: "ce-id", Value: []byte(event.ID)},
		{Key: "ce-time", Value: []byte(event.Time.Format(time.RFC3339))},
		{Key: "content-type", Value: []byte("application/cloudevents+json")},
	}

	optional := []struct{ key, value string }{
		{"ce-wmscorrelationid", event.CorrelationID},
		{"ce-wmsworkflowid", event.WorkflowID},
		{"ce-wmsbatchid", event.BatchID},
		{"ce-traceparent", event.TraceParent},
		{"ce-tracestate", event.TraceState},
	}
	for _, h := range optional {
		if h.value != "" {
			headers = append(headers, kafka.Header{Key: h.key, Value: []byte(h.value)})
		}
	}

	return kafka.Message{
		Key:     []byte(event.Subject),
		Value:   data,
		Headers: headers,
		Time:    event.Time,
	}, nil
}

// Close closes all writers
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close writer for topic %s: %w", topic, err)
		}
	}
	p.writers = make(map[string]MessageWriter)
	return lastErr
}
