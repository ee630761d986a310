package workflow

import (
	"encoding/json"
	"time"
)

// InstanceRecord is the flat, nullable-column form of an Instance as stored
type InstanceRecord struct {
	ID                InstanceID
	TenantID          TenantID
	DefinitionID      DefinitionID
	DefinitionVersion int
	DisplayNumber     int64
	Title             string
	FormData          json.RawMessage
	Status            string
	Version           int
	CurrentStepID     *string
	InitiatedBy       UserID
	SubmittedAt       *time.Time
	CompletedAt       *time.Time
	CancelledFrom     *string
	CancelReason      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Record flattens the instance for storage
func (i *Instance) Record() InstanceRecord {
	rec := InstanceRecord{
		ID:                i.ID,
		TenantID:          i.TenantID,
		DefinitionID:      i.DefinitionID,
		DefinitionVersion: i.DefinitionVersion,
		DisplayNumber:     i.DisplayNumber,
		Title:             i.Title,
		FormData:          i.FormData,
		Status:            i.Status().String(),
		Version:           i.Version,
		InitiatedBy:       i.InitiatedBy,
		SubmittedAt:       i.SubmittedAt(),
		CompletedAt:       i.CompletedAt(),
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
	if step := i.CurrentStepID(); step != "" {
		rec.CurrentStepID = &step
	}
	if c, ok := i.State.(CancelledState); ok {
		from := c.From.String()
		rec.CancelledFrom = &from
		rec.CancelReason = &c.Reason
	}
	return rec
}

// Restore rebuilds an Instance, failing when the row's columns do not match
// what its status requires
func (r InstanceRecord) Restore() (*Instance, error) {
	state, err := r.state()
	if err != nil {
		return nil, err
	}
	return &Instance{
		ID:                r.ID,
		TenantID:          r.TenantID,
		DefinitionID:      r.DefinitionID,
		DefinitionVersion: r.DefinitionVersion,
		DisplayNumber:     r.DisplayNumber,
		Title:             r.Title,
		FormData:          r.FormData,
		InitiatedBy:       r.InitiatedBy,
		State:             state,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

func (r InstanceRecord) state() (InstanceState, error) {
	status := InstanceStatus(r.Status)
	if !status.IsValid() {
		return nil, invalidRecordf("instance %s has unknown status %q", r.ID, r.Status)
	}

	missing := func(field string) error {
		return invalidRecordf("instance %s with status %s is missing %s", r.ID, status, field)
	}
	unexpected := func(field string) error {
		return invalidRecordf("instance %s with status %s must not have %s", r.ID, status, field)
	}

	if status != StatusCancelled && (r.CancelledFrom != nil || r.CancelReason != nil) {
		return nil, unexpected("cancellation fields")
	}

	switch status {
	case StatusDraft:
		if r.SubmittedAt != nil {
			return nil, unexpected("submitted_at")
		}
		if r.CompletedAt != nil {
			return nil, unexpected("completed_at")
		}
		return DraftState{}, nil

	case StatusPending:
		if r.SubmittedAt == nil {
			return nil, missing("submitted_at")
		}
		if r.CompletedAt != nil {
			return nil, unexpected("completed_at")
		}
		return PendingState{SubmittedAt: *r.SubmittedAt}, nil

	case StatusInProgress, StatusChangesRequested:
		if r.SubmittedAt == nil {
			return nil, missing("submitted_at")
		}
		if r.CurrentStepID == nil {
			return nil, missing("current_step_id")
		}
		if r.CompletedAt != nil {
			return nil, unexpected("completed_at")
		}
		if status == StatusInProgress {
			return InProgressState{SubmittedAt: *r.SubmittedAt, CurrentStep: *r.CurrentStepID}, nil
		}
		return ChangesRequestedState{SubmittedAt: *r.SubmittedAt, CurrentStep: *r.CurrentStepID}, nil

	case StatusApproved, StatusRejected:
		if r.SubmittedAt == nil {
			return nil, missing("submitted_at")
		}
		if r.CurrentStepID == nil {
			return nil, missing("current_step_id")
		}
		if r.CompletedAt == nil {
			return nil, missing("completed_at")
		}
		if status == StatusApproved {
			return ApprovedState{SubmittedAt: *r.SubmittedAt, CurrentStep: *r.CurrentStepID, CompletedAt: *r.CompletedAt}, nil
		}
		return RejectedState{SubmittedAt: *r.SubmittedAt, CurrentStep: *r.CurrentStepID, CompletedAt: *r.CompletedAt}, nil

	case StatusCancelled:
		if r.CompletedAt == nil {
			return nil, missing("completed_at")
		}
		if r.CancelledFrom == nil {
			return nil, missing("cancelled_from")
		}
		from := InstanceStatus(*r.CancelledFrom)
		if !instanceTransitions.CanFire(from, TriggerCancel) {
			return nil, invalidRecordf("instance %s cannot have been cancelled from %q", r.ID, *r.CancelledFrom)
		}
		state := CancelledState{
			From:        from,
			SubmittedAt: r.SubmittedAt,
			CompletedAt: *r.CompletedAt,
		}
		if r.CancelReason != nil {
			state.Reason = *r.CancelReason
		}
		if r.CurrentStepID != nil {
			state.CurrentStep = *r.CurrentStepID
		}
		return state, nil
	}

	return nil, invalidRecordf("instance %s has unhandled status %s", r.ID, status)
}

// StepRecord is the flat, nullable-column form of a Step as stored
type StepRecord struct {
	ID               StepID
	TenantID         TenantID
	InstanceID       InstanceID
	DisplayNumber    int64
	Position         int
	DefinitionStepID string
	Name             string
	Status           string
	Version          int
	AssignedTo       *UserID
	Decision         *string
	Comment          *string
	DueDate          *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Record flattens the step for storage
func (s *Step) Record() StepRecord {
	rec := StepRecord{
		ID:               s.ID,
		TenantID:         s.TenantID,
		InstanceID:       s.InstanceID,
		DisplayNumber:    s.DisplayNumber,
		Position:         s.Position,
		DefinitionStepID: s.DefinitionStepID,
		Name:             s.Name,
		Status:           s.Status().String(),
		Version:          s.Version,
		AssignedTo:       s.AssignedTo,
		DueDate:          s.DueDate,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	switch st := s.State.(type) {
	case StepActive:
		started := st.StartedAt
		rec.StartedAt = &started
	case StepCompleted:
		decision := st.Decision.String()
		started, completed := st.StartedAt, st.CompletedAt
		rec.Decision = &decision
		rec.Comment = st.Comment
		rec.StartedAt = &started
		rec.CompletedAt = &completed
	}
	return rec
}

// Restore rebuilds a Step, failing when the row's columns do not match what
// its status requires
func (r StepRecord) Restore() (*Step, error) {
	state, err := r.state()
	if err != nil {
		return nil, err
	}
	return &Step{
		ID:               r.ID,
		TenantID:         r.TenantID,
		InstanceID:       r.InstanceID,
		DisplayNumber:    r.DisplayNumber,
		Position:         r.Position,
		DefinitionStepID: r.DefinitionStepID,
		Name:             r.Name,
		AssignedTo:       r.AssignedTo,
		DueDate:          r.DueDate,
		State:            state,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

func (r StepRecord) state() (StepState, error) {
	status := StepStatus(r.Status)
	if !status.IsValid() {
		return nil, invalidRecordf("step %s has unknown status %q", r.ID, r.Status)
	}

	missing := func(field string) error {
		return invalidRecordf("step %s with status %s is missing %s", r.ID, status, field)
	}
	unexpected := func(field string) error {
		return invalidRecordf("step %s with status %s must not have %s", r.ID, status, field)
	}

	if status != StepStatusCompleted {
		if r.Decision != nil {
			return nil, unexpected("decision")
		}
		if r.CompletedAt != nil {
			return nil, unexpected("completed_at")
		}
	}

	switch status {
	case StepStatusPending:
		return StepPending{}, nil
	case StepStatusSkipped:
		return StepSkipped{}, nil
	case StepStatusActive:
		if r.StartedAt == nil {
			return nil, missing("started_at")
		}
		return StepActive{StartedAt: *r.StartedAt}, nil
	case StepStatusCompleted:
		if r.Decision == nil {
			return nil, missing("decision")
		}
		if r.StartedAt == nil {
			return nil, missing("started_at")
		}
		if r.CompletedAt == nil {
			return nil, missing("completed_at")
		}
		decision := Decision(*r.Decision)
		if !decision.IsValid() {
			return nil, invalidRecordf("step %s has unknown decision %q", r.ID, *r.Decision)
		}
		return StepCompleted{
			Decision:    decision,
			Comment:     r.Comment,
			StartedAt:   *r.StartedAt,
			CompletedAt: *r.CompletedAt,
		}, nil
	}

	return nil, invalidRecordf("step %s has unhandled status %s", r.ID, status)
}
