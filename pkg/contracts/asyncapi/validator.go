package asyncapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/picking-engine/pkg/cloudevents"
)

// Spec is the part of an AsyncAPI document the validator reads
type Spec struct {
	AsyncAPI   string     `yaml:"asyncapi"`
	Components Components `yaml:"components"`
}

// Components holds reusable messages and payload schemas
type Components struct {
	Messages map[string]Message     `yaml:"messages"`
	Schemas  map[string]interface{} `yaml:"schemas"`
}

// Message binds an event type (its name) to a payload schema
type Message struct {
	Name    string `yaml:"name"`
	Payload struct {
		Ref string `yaml:"$ref"`
	} `yaml:"payload"`
}

const schemaRefPrefix = "#/components/schemas/"

// EventValidator checks CloudEvent payloads against the AsyncAPI schemas
type EventValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewEventValidatorFromBytes compiles one schema per message of the document
func NewEventValidatorFromBytes(specBytes []byte) (*EventValidator, error) {
	var spec Spec
	if err := yaml.Unmarshal(specBytes, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse AsyncAPI spec: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	schemas := make(map[string]*jsonschema.Schema, len(spec.Components.Messages))

	for key, msg := range spec.Components.Messages {
		if msg.Name == "" {
			return nil, fmt.Errorf("message %s has no name", key)
		}
		schemaName := strings.TrimPrefix(msg.Payload.Ref, schemaRefPrefix)
		raw, ok := spec.Components.Schemas[schemaName]
		if !ok {
			return nil, fmt.Errorf("message %s references unknown schema %q", key, msg.Payload.Ref)
		}

		doc, err := toJSONValue(raw)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", schemaName, err)
		}
		uri := "asyncapi://schemas/" + schemaName
		if err := compiler.AddResource(uri, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", schemaName, err)
		}
		compiled, err := compiler.Compile(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", schemaName, err)
		}
		schemas[msg.Name] = compiled
	}

	return &EventValidator{schemas: schemas}, nil
}

// toJSONValue normalizes a YAML-decoded value into the types the schema library expects
func toJSONValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// ValidateEvent checks event data against the schema registered for its type
func (v *EventValidator) ValidateEvent(event *cloudevents.WMSCloudEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	schema, ok := v.schemas[event.Type]
	if !ok {
		return fmt.Errorf("no schema found for event type: %s", event.Type)
	}
	if event.Data == nil {
		return fmt.Errorf("event data is required for %s", event.Type)
	}

	data, err := toJSONValue(event.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	if err := schema.Validate(data); err != nil {
		return fmt.Errorf("event data validation failed for type %s: %w", event.Type, err)
	}
	return nil
}

// SupportedEventTypes lists the event types with a schema, sorted
func (v *EventValidator) SupportedEventTypes() []string {
	types := make([]string, 0, len(v.schemas))
	for t := range v.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
