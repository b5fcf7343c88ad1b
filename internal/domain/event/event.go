package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by producers and handlers
const (
	PayloadNotificationID = "notification_id"
	PayloadRecipientID    = "recipient_id"
	PayloadComment        = "comment"
)

// Event represents a domain event raised after a workflow change commits
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequestID     int64                  `json:"request_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with generated ID and timestamp
func NewEvent(eventType Type, requestID int64, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		RequestID:     requestID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain, such as an HTTP request ID
func NewEventWithCorrelation(eventType Type, requestID int64, payload map[string]interface{}, correlationID string) *Event {
	evt := NewEvent(eventType, requestID, payload)
	if correlationID != "" {
		evt.CorrelationID = correlationID
	}
	return evt
}

// WithPayload returns a new Event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
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
