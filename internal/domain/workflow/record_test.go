package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceRecord_RoundTrip(t *testing.T) {
	for _, status := range allInstanceStatuses {
		t.Run(string(status), func(t *testing.T) {
			inst := instanceIn(t, status)

			restored, err := inst.Record().Restore()
			require.NoError(t, err)
			assert.Equal(t, inst, restored)
		})
	}
}

func TestStepRecord_RoundTrip(t *testing.T) {
	for _, status := range allStepStatuses {
		t.Run(string(status), func(t *testing.T) {
			s := stepIn(t, status)

			restored, err := s.Record().Restore()
			require.NoError(t, err)
			assert.Equal(t, s, restored)
		})
	}
}

func TestStepRecord_CompletedKeepsDecision(t *testing.T) {
	active := stepIn(t, StepStatusActive)
	comment := "over budget"
	done, err := active.Reject(&comment, baseTime.Add(time.Hour))
	require.NoError(t, err)

	rec := done.Record()
	require.NotNil(t, rec.Decision)
	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, "rejected", *rec.Decision)
	assert.Equal(t, baseTime.Add(time.Hour), *rec.CompletedAt)

	restored, err := rec.Restore()
	require.NoError(t, err)
	decision, ok := restored.Decision()
	assert.True(t, ok)
	assert.Equal(t, DecisionRejected, decision)
	assert.Equal(t, "over budget", *restored.State.(StepCompleted).Comment)
}

func TestInstanceRecord_RestoreRejectsInconsistentRows(t *testing.T) {
	now := baseTime
	step := "mgr"
	from := "in_progress"
	approvedFrom := "approved"
	reason := "x"

	tests := []struct {
		name   string
		mutate func(r *InstanceRecord)
	}{
		{"unknown status", func(r *InstanceRecord) { r.Status = "archived" }},
		{"draft with submitted_at", func(r *InstanceRecord) { r.Status = "draft"; r.SubmittedAt = &now }},
		{"pending without submitted_at", func(r *InstanceRecord) { r.Status = "pending"; r.SubmittedAt = nil }},
		{"in progress without step", func(r *InstanceRecord) { r.Status = "in_progress"; r.CurrentStepID = nil }},
		{"in progress with completed_at", func(r *InstanceRecord) { r.Status = "in_progress"; r.CompletedAt = &now }},
		{"approved without completed_at", func(r *InstanceRecord) { r.Status = "approved"; r.CompletedAt = nil }},
		{"changes requested with completed_at", func(r *InstanceRecord) { r.Status = "changes_requested"; r.CompletedAt = &now }},
		{"cancelled without source", func(r *InstanceRecord) { r.Status = "cancelled"; r.CompletedAt = &now; r.CancelledFrom = nil }},
		{"cancelled from terminal", func(r *InstanceRecord) {
			r.Status = "cancelled"
			r.CompletedAt = &now
			r.CancelledFrom = &approvedFrom
		}},
		{"cancellation fields on active row", func(r *InstanceRecord) { r.CancelledFrom = &from; r.CancelReason = &reason }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := instanceIn(t, StatusInProgress).Record()
			rec.CurrentStepID = &step
			tt.mutate(&rec)

			_, err := rec.Restore()
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestStepRecord_RestoreRejectsInconsistentRows(t *testing.T) {
	now := baseTime
	approved := "approved"
	bogus := "maybe"

	tests := []struct {
		name   string
		mutate func(r *StepRecord)
	}{
		{"unknown status", func(r *StepRecord) { r.Status = "done" }},
		{"active without started_at", func(r *StepRecord) { r.Status = "active"; r.StartedAt = nil }},
		{"completed without decision", func(r *StepRecord) { r.Status = "completed"; r.StartedAt = &now; r.CompletedAt = &now }},
		{"completed without completed_at", func(r *StepRecord) { r.Status = "completed"; r.StartedAt = &now; r.Decision = &approved }},
		{"completed with unknown decision", func(r *StepRecord) {
			r.Status = "completed"
			r.StartedAt = &now
			r.CompletedAt = &now
			r.Decision = &bogus
		}},
		{"pending with decision", func(r *StepRecord) { r.Status = "pending"; r.Decision = &approved }},
		{"skipped with completed_at", func(r *StepRecord) { r.Status = "skipped"; r.CompletedAt = &now }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newPendingStep().Record()
			tt.mutate(&rec)

			_, err := rec.Restore()
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}
