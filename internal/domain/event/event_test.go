package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"instance approved", TypeInstanceApproved, true},
		{"step rejected", TypeStepRejected, true},
		{"comment posted", TypeCommentPosted, true},
		{"step overdue", TypeStepOverdue, true},
		{"wildcard", TypeAll, false},
		{"unknown", Type("report.generated"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	evt := NewEvent(TypeInstanceSubmitted, "tenant-1", "user-1", at, nil)

	if evt.ID == "" {
		t.Error("expected generated ID")
	}
	if evt.CorrelationID != evt.ID {
		t.Errorf("CorrelationID = %s, want the event ID", evt.CorrelationID)
	}
	if !evt.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", evt.Timestamp, at)
	}
	if evt.Payload == nil {
		t.Error("expected empty payload map")
	}

	other := NewEvent(TypeInstanceSubmitted, "tenant-1", "user-1", at, nil)
	if other.ID == evt.ID {
		t.Error("expected unique IDs")
	}
}

func TestEvent_WithPayloadIsImmutable(t *testing.T) {
	original := NewEvent(TypeStepApproved, "t", "u", time.Now(), map[string]interface{}{"display_id": "WF-1"})

	updated := original.WithPayload("step_display_id", "STEP-2").ForInstance("i-1").ForStep("s-1")

	if _, ok := original.Payload["step_display_id"]; ok {
		t.Error("original payload must not change")
	}
	if original.InstanceID != "" || original.StepID != "" {
		t.Error("original scope must not change")
	}
	if updated.GetPayloadString("step_display_id") != "STEP-2" {
		t.Errorf("GetPayloadString() = %q", updated.GetPayloadString("step_display_id"))
	}
	if updated.GetPayloadString("display_id") != "WF-1" {
		t.Error("existing payload keys must be kept")
	}
	if updated.InstanceID != "i-1" || updated.StepID != "s-1" {
		t.Errorf("scope = %s/%s", updated.InstanceID, updated.StepID)
	}
	if updated.ID != original.ID {
		t.Error("copies keep the event ID")
	}
}

func TestEvent_GetPayloadInt(t *testing.T) {
	evt := NewEvent(TypeInstanceCreated, "t", "u", time.Now(), map[string]interface{}{
		"int":    3,
		"int64":  int64(4),
		"float":  float64(5),
		"string": "6",
	})

	for key, want := range map[string]int64{"int": 3, "int64": 4, "float": 5, "string": 0, "missing": 0} {
		if got := evt.GetPayloadInt(key); got != want {
			t.Errorf("GetPayloadInt(%q) = %d, want %d", key, got, want)
		}
	}
}
