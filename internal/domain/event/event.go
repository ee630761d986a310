package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is an audit record of something that happened to a tenant's workflow
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	TenantID      string                 `json:"tenant_id"`
	InstanceID    string                 `json:"instance_id,omitempty"`
	StepID        string                 `json:"step_id,omitempty"`
	ActorID       string                 `json:"actor_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with an auto-generated ID. The
// timestamp is the caller's clock reading so it matches the persisted rows.
func NewEvent(eventType Type, tenantID, actorID string, at time.Time, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            id,
		Type:          eventType,
		TenantID:      tenantID,
		ActorID:       actorID,
		Payload:       payload,
		Timestamp:     at,
		CorrelationID: id,
	}
}

// ForInstance returns a copy scoped to an instance
func (e *Event) ForInstance(instanceID string) *Event {
	next := e.clone()
	next.InstanceID = instanceID
	return next
}

// ForStep returns a copy scoped to a step
func (e *Event) ForStep(stepID string) *Event {
	next := e.clone()
	next.StepID = stepID
	return next
}

// WithCorrelation returns a copy linked to an existing correlation chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	next := e.clone()
	next.CorrelationID = correlationID
	return next
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	next := e.clone()
	next.Payload[key] = value
	return next
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

func (e *Event) clone() *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	next := *e
	next.Payload = payload
	return &next
}
