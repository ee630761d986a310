package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

const validBody = `{
  "form": {"fields": [{"id": "amount", "type": "number", "label": "Amount"}]},
  "steps": [
    {"id": "start", "type": "start", "name": "Start"},
    {"id": "mgr", "type": "approval", "name": "Manager", "fields": ["amount"], "due_in_hours": 48},
    {"id": "end", "type": "end", "name": "End"}
  ],
  "transitions": [
    {"from": "start", "to": "mgr"},
    {"from": "mgr", "to": "end", "trigger": "approve"},
    {"from": "mgr", "to": "end", "trigger": "reject"}
  ]
}`

// chainBody builds a valid linear definition with n approval steps a1..an
func chainBody(n int) string {
	steps := []string{`{"id":"start","type":"start","name":"Start"}`}
	transitions := []string{}
	prev := "start"
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("a%d", i)
		steps = append(steps, fmt.Sprintf(`{"id":%q,"type":"approval","name":"Approver %d"}`, id, i))
		if prev == "start" {
			transitions = append(transitions, fmt.Sprintf(`{"from":"start","to":%q}`, id))
		} else {
			transitions = append(transitions, fmt.Sprintf(`{"from":%q,"to":%q,"trigger":"approve"}`, prev, id))
		}
		transitions = append(transitions, fmt.Sprintf(`{"from":%q,"to":"end","trigger":"reject"}`, id))
		prev = id
	}
	steps = append(steps, `{"id":"end","type":"end","name":"End"}`)
	transitions = append(transitions, fmt.Sprintf(`{"from":%q,"to":"end","trigger":"approve"}`, prev))
	return fmt.Sprintf(`{"steps":[%s],"transitions":[%s]}`, strings.Join(steps, ","), strings.Join(transitions, ","))
}

func newDraft(t *testing.T) *Instance {
	t.Helper()
	inst, err := NewInstance(NewInstanceParams{
		ID:                NewInstanceID(),
		TenantID:          NewTenantID(),
		DefinitionID:      NewDefinitionID(),
		DefinitionVersion: 2,
		DisplayNumber:     1,
		Title:             "Laptop purchase",
		FormData:          json.RawMessage(`{"amount": 1200}`),
		InitiatedBy:       NewUserID(),
		Now:               baseTime,
	})
	require.NoError(t, err)
	return inst
}

// instanceIn drives a fresh draft into status through legal transitions
func instanceIn(t *testing.T, status InstanceStatus) *Instance {
	t.Helper()
	inst := newDraft(t)
	now := baseTime

	step := func(next *Instance, err error) *Instance {
		t.Helper()
		require.NoError(t, err)
		now = now.Add(time.Minute)
		return next
	}

	switch status {
	case StatusDraft:
		return inst
	case StatusCancelled:
		return step(inst.Cancelled("no longer needed", now))
	}

	inst = step(inst.Submitted(now))
	if status == StatusPending {
		return inst
	}
	inst = step(inst.WithCurrentStep("mgr", now))

	switch status {
	case StatusInProgress:
		return inst
	case StatusApproved:
		return step(inst.CompleteWithApproval(now))
	case StatusRejected:
		return step(inst.CompleteWithRejection(now))
	case StatusChangesRequested:
		return step(inst.CompleteWithRequestChanges(now))
	}
	t.Fatalf("unhandled status %s", status)
	return nil
}

// fireInstance calls the transition method behind trigger
func fireInstance(inst *Instance, trigger InstanceTrigger, now time.Time) (*Instance, error) {
	switch trigger {
	case TriggerEdit:
		return inst.DraftUpdated("Updated title", nil, now)
	case TriggerSubmit:
		return inst.Submitted(now)
	case TriggerStart:
		return inst.WithCurrentStep("mgr", now)
	case TriggerAdvance:
		return inst.AdvanceToNextStep("finance", now)
	case TriggerApprove:
		return inst.CompleteWithApproval(now)
	case TriggerReject:
		return inst.CompleteWithRejection(now)
	case TriggerRequestChanges:
		return inst.CompleteWithRequestChanges(now)
	case TriggerResubmit:
		return inst.Resubmitted(json.RawMessage(`{"amount": 900}`), "mgr", now)
	case TriggerCancel:
		return inst.Cancelled("withdrawn", now)
	}
	panic("unknown trigger " + string(trigger))
}

func newPendingStep() *Step {
	assignee := NewUserID()
	return NewStep(NewStepParams{
		ID:               NewStepID(),
		TenantID:         NewTenantID(),
		InstanceID:       NewInstanceID(),
		DisplayNumber:    3,
		Position:         2,
		DefinitionStepID: "finance",
		Name:             "Finance",
		AssignedTo:       &assignee,
		Now:              baseTime,
	})
}

func stepIn(t *testing.T, status StepStatus) *Step {
	t.Helper()
	s := newPendingStep()
	var err error
	switch status {
	case StepStatusPending:
		return s
	case StepStatusSkipped:
		s, err = s.Skipped(baseTime.Add(time.Minute))
	case StepStatusActive:
		s, err = s.Activated(baseTime.Add(time.Minute))
	case StepStatusCompleted:
		s, err = s.Activated(baseTime.Add(time.Minute))
		require.NoError(t, err)
		s, err = s.Approve(nil, baseTime.Add(2*time.Minute))
	}
	require.NoError(t, err)
	return s
}

func fireStep(s *Step, trigger StepTrigger, now time.Time) (*Step, error) {
	comment := "looks fine"
	switch trigger {
	case StepTriggerActivate:
		return s.Activated(now)
	case StepTriggerApprove:
		return s.Approve(&comment, now)
	case StepTriggerReject:
		return s.Reject(&comment, now)
	case StepTriggerRequestChanges:
		return s.RequestChanges(&comment, now)
	case StepTriggerSkip:
		return s.Skipped(now)
	}
	panic("unknown trigger " + string(trigger))
}

func newDraftDefinition(t *testing.T, body string) *Definition {
	t.Helper()
	def, err := NewDefinition(NewDefinitionParams{
		ID:          NewDefinitionID(),
		TenantID:    NewTenantID(),
		Name:        "Purchase request",
		Description: "Hardware and software purchases",
		Body:        json.RawMessage(body),
		CreatedBy:   NewUserID(),
		Now:         baseTime,
	})
	require.NoError(t, err)
	return def
}

func definitionIn(t *testing.T, status DefinitionStatus) *Definition {
	t.Helper()
	def := newDraftDefinition(t, validBody)
	var err error
	switch status {
	case DefinitionPublished:
		def, err = def.Published(baseTime.Add(time.Minute))
	case DefinitionArchived:
		def, err = def.Published(baseTime.Add(time.Minute))
		require.NoError(t, err)
		def, err = def.Archived(baseTime.Add(2 * time.Minute))
	}
	require.NoError(t, err)
	return def
}

func fireDefinition(d *Definition, trigger DefinitionTrigger, now time.Time) (*Definition, error) {
	switch trigger {
	case DefinitionTriggerEdit:
		return d.Updated("Purchase request v2", "", nil, now)
	case DefinitionTriggerPublish:
		return d.Published(now)
	case DefinitionTriggerArchive:
		return d.Archived(now)
	}
	panic("unknown trigger " + string(trigger))
}
