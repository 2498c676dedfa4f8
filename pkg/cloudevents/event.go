package cloudevents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"github.com/wms-platform/picking-engine/pkg/logging"
)

// SpecVersion is the CloudEvents specification version produced by this package
const SpecVersion = "1.0"

// WMSCloudEvent is a CloudEvents 1.0 envelope with WMS extensions
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype,omitempty"`
	Data            interface{} `json:"data,omitempty"`

	// WMS extensions
	CorrelationID string `json:"wmscorrelationid,omitempty"`
	WorkflowID    string `json:"wmsworkflowid,omitempty"`
	BatchID       string `json:"wmsbatchid,omitempty"`

	// W3C trace context
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// Validate checks the required CloudEvents attributes
func (e *WMSCloudEvent) Validate() error {
	var errs []error
	if e.SpecVersion != SpecVersion {
		errs = append(errs, errors.New("specversion must be "+SpecVersion))
	}
	if e.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if e.Type == "" {
		errs = append(errs, errors.New("type is required"))
	}
	if e.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	return errors.Join(errs...)
}

// EventFactory creates CloudEvents for one source
type EventFactory struct {
	source     string
	propagator propagation.TextMapPropagator
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source, propagator: propagation.TraceContext{}}
}

// CreateEvent builds an event, carrying the correlation id and trace context found in ctx
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *WMSCloudEvent {
	event := &WMSCloudEvent{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.NewString(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		CorrelationID:   logging.CorrelationIDFromContext(ctx),
	}

	if ctx != nil {
		carrier := propagation.MapCarrier{}
		f.propagator.Inject(ctx, carrier)
		event.TraceParent = carrier.Get("traceparent")
		event.TraceState = carrier.Get("tracestate")
	}

	return event
}

// CreateBatchEvent builds an event whose subject is the batch
func (f *EventFactory) CreateBatchEvent(ctx context.Context, eventType, batchID string, data interface{}) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, "batch/"+batchID, data)
	event.BatchID = batchID
	return event
}
