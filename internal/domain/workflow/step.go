package workflow

import (
	"strings"
	"time"
	"unicode/utf8"
)

const maxCommentLength = 2000

// Step is one approval checkpoint inside an instance
type Step struct {
	ID               StepID
	TenantID         TenantID
	InstanceID       InstanceID
	DisplayNumber    int64
	Position         int
	DefinitionStepID string
	Name             string
	AssignedTo       *UserID
	DueDate          *time.Time
	State            StepState
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewStepParams holds the inputs for creating a step
type NewStepParams struct {
	ID               StepID
	TenantID         TenantID
	InstanceID       InstanceID
	DisplayNumber    int64
	Position         int
	DefinitionStepID string
	Name             string
	AssignedTo       *UserID
	DueDate          *time.Time
	Now              time.Time
}

// NewStep creates a Pending step at version 1
func NewStep(p NewStepParams) *Step {
	return newStep(p, StepPending{})
}

// NewActiveStep creates the first step of a chain, already Active at version 1
func NewActiveStep(p NewStepParams) *Step {
	return newStep(p, StepActive{StartedAt: p.Now})
}

func newStep(p NewStepParams, state StepState) *Step {
	return &Step{
		ID:               p.ID,
		TenantID:         p.TenantID,
		InstanceID:       p.InstanceID,
		DisplayNumber:    p.DisplayNumber,
		Position:         p.Position,
		DefinitionStepID: p.DefinitionStepID,
		Name:             p.Name,
		AssignedTo:       p.AssignedTo,
		DueDate:          p.DueDate,
		State:            state,
		Version:          1,
		CreatedAt:        p.Now,
		UpdatedAt:        p.Now,
	}
}

// Status returns the discriminator of the current state
func (s *Step) Status() StepStatus {
	return s.State.Status()
}

// DisplayID renders the human-readable id, e.g. STEP-7
func (s *Step) DisplayID() string {
	return FormatDisplayID(EntityStep, s.DisplayNumber)
}

// IsAssignedTo reports whether user is the step's approver
func (s *Step) IsAssignedTo(user UserID) bool {
	return s.AssignedTo != nil && *s.AssignedTo == user
}

// Decision returns the recorded decision of a completed step
func (s *Step) Decision() (Decision, bool) {
	c, ok := s.State.(StepCompleted)
	if !ok {
		return "", false
	}
	return c.Decision, true
}

// IsOverdue reports whether an active step has passed its due date
func (s *Step) IsOverdue(now time.Time) bool {
	if s.DueDate == nil {
		return false
	}
	_, active := s.State.(StepActive)
	return active && now.After(*s.DueDate)
}

// Activated moves Pending to Active
func (s *Step) Activated(now time.Time) (*Step, error) {
	if err := s.fire(StepTriggerActivate); err != nil {
		return nil, err
	}
	return s.with(StepActive{StartedAt: now}, now, true), nil
}

// Approve completes an active step with an approval
func (s *Step) Approve(comment *string, now time.Time) (*Step, error) {
	return s.complete(StepTriggerApprove, DecisionApproved, comment, now)
}

// Reject completes an active step with a rejection
func (s *Step) Reject(comment *string, now time.Time) (*Step, error) {
	return s.complete(StepTriggerReject, DecisionRejected, comment, now)
}

// RequestChanges completes an active step by sending the request back
func (s *Step) RequestChanges(comment *string, now time.Time) (*Step, error) {
	return s.complete(StepTriggerRequestChanges, DecisionRequestChanges, comment, now)
}

// Skipped marks a pending sibling as skipped. Unlike every other transition
// it leaves Version unchanged; the write is not version-checked either.
func (s *Step) Skipped(now time.Time) (*Step, error) {
	if err := s.fire(StepTriggerSkip); err != nil {
		return nil, err
	}
	return s.with(StepSkipped{}, now, false), nil
}

func (s *Step) complete(trigger StepTrigger, decision Decision, comment *string, now time.Time) (*Step, error) {
	if err := s.fire(trigger); err != nil {
		return nil, err
	}
	active, ok := s.State.(StepActive)
	if !ok {
		return nil, invalidRecordf("step %s has status %s with state %T", s.ID, s.Status(), s.State)
	}
	normalized, err := normalizeComment(comment)
	if err != nil {
		return nil, err
	}

	return s.with(StepCompleted{
		Decision:    decision,
		Comment:     normalized,
		StartedAt:   active.StartedAt,
		CompletedAt: now,
	}, now, true), nil
}

func (s *Step) fire(trigger StepTrigger) error {
	_, err := stepTransitions.Fire(s.Status(), trigger)
	return err
}

func (s *Step) with(state StepState, now time.Time, bump bool) *Step {
	next := *s
	next.State = state
	next.UpdatedAt = now
	if bump {
		next.Version = s.Version + 1
	}
	return &next
}

func normalizeComment(comment *string) (*string, error) {
	if comment == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxCommentLength {
		return nil, Validationf("comment must be at most %d characters", maxCommentLength)
	}
	return &trimmed, nil
}
