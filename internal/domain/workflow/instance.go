package workflow

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

const maxTitleLength = 200

// Instance is one submitted request. Transition methods never modify the
// receiver: they return a new Instance with Version incremented by one.
type Instance struct {
	ID                InstanceID
	TenantID          TenantID
	DefinitionID      DefinitionID
	DefinitionVersion int
	DisplayNumber     int64
	Title             string
	FormData          json.RawMessage
	InitiatedBy       UserID
	State             InstanceState
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewInstanceParams holds the inputs for creating a draft instance
type NewInstanceParams struct {
	ID                InstanceID
	TenantID          TenantID
	DefinitionID      DefinitionID
	DefinitionVersion int
	DisplayNumber     int64
	Title             string
	FormData          json.RawMessage
	InitiatedBy       UserID
	Now               time.Time
}

// NewInstance creates a Draft instance at version 1
func NewInstance(p NewInstanceParams) (*Instance, error) {
	title, err := normalizeTitle(p.Title)
	if err != nil {
		return nil, err
	}
	form, err := normalizeFormData(p.FormData)
	if err != nil {
		return nil, err
	}
	if p.DisplayNumber <= 0 {
		return nil, Validationf("display number must be positive")
	}

	return &Instance{
		ID:                p.ID,
		TenantID:          p.TenantID,
		DefinitionID:      p.DefinitionID,
		DefinitionVersion: p.DefinitionVersion,
		DisplayNumber:     p.DisplayNumber,
		Title:             title,
		FormData:          form,
		InitiatedBy:       p.InitiatedBy,
		State:             DraftState{},
		Version:           1,
		CreatedAt:         p.Now,
		UpdatedAt:         p.Now,
	}, nil
}

// Status returns the discriminator of the current state
func (i *Instance) Status() InstanceStatus {
	return i.State.Status()
}

// DisplayID renders the human-readable id, e.g. WF-42
func (i *Instance) DisplayID() string {
	return FormatDisplayID(EntityInstance, i.DisplayNumber)
}

// SubmittedAt is set from Pending onwards
func (i *Instance) SubmittedAt() *time.Time {
	switch s := i.State.(type) {
	case PendingState:
		return &s.SubmittedAt
	case InProgressState:
		return &s.SubmittedAt
	case ApprovedState:
		return &s.SubmittedAt
	case RejectedState:
		return &s.SubmittedAt
	case ChangesRequestedState:
		return &s.SubmittedAt
	case CancelledState:
		return s.SubmittedAt
	}
	return nil
}

// CompletedAt is set once approved, rejected or cancelled
func (i *Instance) CompletedAt() *time.Time {
	switch s := i.State.(type) {
	case ApprovedState:
		return &s.CompletedAt
	case RejectedState:
		return &s.CompletedAt
	case CancelledState:
		return &s.CompletedAt
	}
	return nil
}

// CurrentStepID is the definition step id of the step in focus
func (i *Instance) CurrentStepID() string {
	switch s := i.State.(type) {
	case InProgressState:
		return s.CurrentStep
	case ApprovedState:
		return s.CurrentStep
	case RejectedState:
		return s.CurrentStep
	case ChangesRequestedState:
		return s.CurrentStep
	case CancelledState:
		return s.CurrentStep
	}
	return ""
}

// IsTerminal reports whether the instance can no longer change
func (i *Instance) IsTerminal() bool {
	return i.Status().IsTerminal()
}

// DraftUpdated replaces title and form data. Draft only.
func (i *Instance) DraftUpdated(title string, formData json.RawMessage, now time.Time) (*Instance, error) {
	if err := i.fire(TriggerEdit); err != nil {
		return nil, err
	}
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}
	form, err := normalizeFormData(formData)
	if err != nil {
		return nil, err
	}

	next := i.with(DraftState{}, now)
	next.Title = title
	next.FormData = form
	return next, nil
}

// Submitted moves Draft to Pending
func (i *Instance) Submitted(now time.Time) (*Instance, error) {
	if err := i.fire(TriggerSubmit); err != nil {
		return nil, err
	}
	return i.with(PendingState{SubmittedAt: now}, now), nil
}

// WithCurrentStep moves Pending to InProgress focused on stepID
func (i *Instance) WithCurrentStep(stepID string, now time.Time) (*Instance, error) {
	if err := i.fire(TriggerStart); err != nil {
		return nil, err
	}
	s, ok := i.State.(PendingState)
	if !ok {
		return nil, i.stateMismatch()
	}
	return i.with(InProgressState{SubmittedAt: s.SubmittedAt, CurrentStep: stepID}, now), nil
}

// AdvanceToNextStep replaces the current step of an InProgress instance
func (i *Instance) AdvanceToNextStep(nextStepID string, now time.Time) (*Instance, error) {
	if err := i.fire(TriggerAdvance); err != nil {
		return nil, err
	}
	s, ok := i.State.(InProgressState)
	if !ok {
		return nil, i.stateMismatch()
	}
	return i.with(InProgressState{SubmittedAt: s.SubmittedAt, CurrentStep: nextStepID}, now), nil
}

// CompleteWithApproval moves InProgress to Approved
func (i *Instance) CompleteWithApproval(now time.Time) (*Instance, error) {
	if err := i.fire(TriggerApprove); err != nil {
		return nil, err
	}
	s, ok := i.State.(InProgressState)
	if !ok {
		return nil, i.stateMismatch()
	}
	return i.with(ApprovedState{SubmittedAt: s.SubmittedAt, CurrentStep: s.CurrentStep, CompletedAt: now}, now), nil
}

// CompleteWithRejection moves InProgress to Rejected
func (i *Instance) CompleteWithRejection(now time.Time) (*Instance, error) {
	if err := i.fire(TriggerReject); err != nil {
		return nil, err
	}
	s, ok := i.State.(InProgressState)
	if !ok {
		return nil, i.stateMismatch()
	}
	return i.with(RejectedState{SubmittedAt: s.SubmittedAt, CurrentStep: s.CurrentStep, CompletedAt: now}, now), nil
}

// CompleteWithRequestChanges moves InProgress to ChangesRequested.
// ChangesRequested is not terminal, so no completion time is recorded.
func (i *Instance) CompleteWithRequestChanges(now time.Time) (*Instance, error) {
	if err := i.fire(TriggerRequestChanges); err != nil {
		return nil, err
	}
	s, ok := i.State.(InProgressState)
	if !ok {
		return nil, i.stateMismatch()
	}
	return i.with(ChangesRequestedState{SubmittedAt: s.SubmittedAt, CurrentStep: s.CurrentStep}, now), nil
}

// Resubmitted moves ChangesRequested back to InProgress with new form data,
// focused on the first step of the fresh step chain
func (i *Instance) Resubmitted(formData json.RawMessage, firstStepID string, now time.Time) (*Instance, error) {
	if err := i.fire(TriggerResubmit); err != nil {
		return nil, err
	}
	s, ok := i.State.(ChangesRequestedState)
	if !ok {
		return nil, i.stateMismatch()
	}
	form, err := normalizeFormData(formData)
	if err != nil {
		return nil, err
	}

	next := i.with(InProgressState{SubmittedAt: s.SubmittedAt, CurrentStep: firstStepID}, now)
	next.FormData = form
	return next, nil
}

// Cancelled withdraws a non-terminal instance
func (i *Instance) Cancelled(reason string, now time.Time) (*Instance, error) {
	if err := i.fire(TriggerCancel); err != nil {
		return nil, err
	}
	state := CancelledState{
		From:        i.Status(),
		Reason:      strings.TrimSpace(reason),
		SubmittedAt: i.SubmittedAt(),
		CurrentStep: i.CurrentStepID(),
		CompletedAt: now,
	}
	return i.with(state, now), nil
}

func (i *Instance) fire(trigger InstanceTrigger) error {
	_, err := instanceTransitions.Fire(i.Status(), trigger)
	return err
}

func (i *Instance) with(state InstanceState, now time.Time) *Instance {
	next := *i
	next.State = state
	next.Version = i.Version + 1
	next.UpdatedAt = now
	return &next
}

func (i *Instance) stateMismatch() error {
	return invalidRecordf("instance %s has status %s with state %T", i.ID, i.Status(), i.State)
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", Validationf("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", Validationf("title must be at most %d characters", maxTitleLength)
	}
	return title, nil
}

func normalizeFormData(data json.RawMessage) (json.RawMessage, error) {
	if len(data) == 0 {
		return json.RawMessage(`{}`), nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, Validationf("form data must be a JSON object")
	}
	return data, nil
}
