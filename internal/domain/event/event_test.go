package event

import (
	"context"
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"submitted", TypeRequestSubmitted, true},
		{"approval requested", TypeApprovalRequested, true},
		{"approved", TypeRequestApproved, true},
		{"rejected", TypeRequestRejected, true},
		{"returned", TypeRequestReturned, true},
		{"unknown", Type("request.deleted"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllTypes(t *testing.T) {
	for _, typ := range AllTypes() {
		if !typ.IsValid() {
			t.Errorf("AllTypes() returned invalid type %s", typ)
		}
	}
	if len(AllTypes()) != 5 {
		t.Errorf("expected 5 types, got %d", len(AllTypes()))
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(TypeRequestApproved, 42, map[string]interface{}{PayloadNotificationID: int64(7)})

	if evt.ID == "" {
		t.Error("expected generated ID")
	}
	if evt.CorrelationID != evt.ID {
		t.Error("expected correlation ID to default to event ID")
	}
	if evt.RequestID != 42 {
		t.Errorf("RequestID = %d, want 42", evt.RequestID)
	}
	if evt.Timestamp.Before(before) {
		t.Error("timestamp should not precede creation")
	}
	if got := evt.GetPayloadInt(PayloadNotificationID); got != 7 {
		t.Errorf("GetPayloadInt() = %d, want 7", got)
	}

	other := NewEvent(TypeRequestApproved, 42, nil)
	if other.ID == evt.ID {
		t.Error("expected unique IDs")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeRequestReturned, 1, nil, "req-abc")
	if evt.CorrelationID != "req-abc" {
		t.Errorf("CorrelationID = %q, want req-abc", evt.CorrelationID)
	}

	fallback := NewEventWithCorrelation(TypeRequestReturned, 1, nil, "")
	if fallback.CorrelationID != fallback.ID {
		t.Error("empty correlation should fall back to event ID")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeRequestRejected, 1, map[string]interface{}{PayloadComment: "too expensive"})
	updated := original.WithPayload(PayloadRecipientID, 3)

	if _, ok := original.Payload[PayloadRecipientID]; ok {
		t.Error("original payload should be unchanged")
	}
	if got := updated.GetPayloadInt(PayloadRecipientID); got != 3 {
		t.Errorf("GetPayloadInt() = %d, want 3", got)
	}
	if got := updated.GetPayloadString(PayloadComment); got != "too expensive" {
		t.Errorf("GetPayloadString() = %q", got)
	}
	if updated.ID != original.ID {
		t.Error("WithPayload should keep the event ID")
	}
}

func TestGetPayload_Missing(t *testing.T) {
	evt := NewEvent(TypeRequestSubmitted, 1, map[string]interface{}{"n": "x"})
	if evt.GetPayloadInt("missing") != 0 || evt.GetPayloadInt("n") != 0 {
		t.Error("expected zero for missing or mistyped int")
	}
	if evt.GetPayloadString("missing") != "" {
		t.Error("expected empty string for missing key")
	}
}

func TestCorrelationContext(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc")
	if got := CorrelationIDFrom(ctx); got != "abc" {
		t.Errorf("CorrelationIDFrom() = %q", got)
	}
	if got := CorrelationIDFrom(context.Background()); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
}
