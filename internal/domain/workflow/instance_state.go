package workflow

import "time"

// InstanceStatus is the persisted discriminator of an instance's lifecycle state
type InstanceStatus string

const (
	StatusDraft            InstanceStatus = "draft"
	StatusPending          InstanceStatus = "pending"
	StatusInProgress       InstanceStatus = "in_progress"
	StatusApproved         InstanceStatus = "approved"
	StatusRejected         InstanceStatus = "rejected"
	StatusCancelled        InstanceStatus = "cancelled"
	StatusChangesRequested InstanceStatus = "changes_requested"
)

var validInstanceStatuses = map[InstanceStatus]bool{
	StatusDraft:            true,
	StatusPending:          true,
	StatusInProgress:       true,
	StatusApproved:         true,
	StatusRejected:         true,
	StatusCancelled:        true,
	StatusChangesRequested: true,
}

var terminalInstanceStatuses = map[InstanceStatus]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusCancelled: true,
}

// IsTerminal returns true if no further transitions are allowed
func (s InstanceStatus) IsTerminal() bool {
	return terminalInstanceStatuses[s]
}

// String returns the string representation of the status
func (s InstanceStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is known
func (s InstanceStatus) IsValid() bool {
	return validInstanceStatuses[s]
}

// InstanceTrigger names an instance transition
type InstanceTrigger string

const (
	TriggerEdit           InstanceTrigger = "edit"
	TriggerSubmit         InstanceTrigger = "submit"
	TriggerStart          InstanceTrigger = "start"
	TriggerAdvance        InstanceTrigger = "advance"
	TriggerApprove        InstanceTrigger = "approve"
	TriggerReject         InstanceTrigger = "reject"
	TriggerRequestChanges InstanceTrigger = "request_changes"
	TriggerResubmit       InstanceTrigger = "resubmit"
	TriggerCancel         InstanceTrigger = "cancel"
)

// AllInstanceTriggers lists every instance trigger
var AllInstanceTriggers = []InstanceTrigger{
	TriggerEdit, TriggerSubmit, TriggerStart, TriggerAdvance, TriggerApprove,
	TriggerReject, TriggerRequestChanges, TriggerResubmit, TriggerCancel,
}

var instanceTransitions = buildInstanceTransitions()

func buildInstanceTransitions() *TransitionTable[InstanceStatus, InstanceTrigger] {
	b := NewBuilder[InstanceStatus, InstanceTrigger]()

	b.Configure(StatusDraft).
		Permit(TriggerEdit, StatusDraft).
		Permit(TriggerSubmit, StatusPending).
		Permit(TriggerCancel, StatusCancelled)

	b.Configure(StatusPending).
		Permit(TriggerStart, StatusInProgress).
		Permit(TriggerCancel, StatusCancelled)

	b.Configure(StatusInProgress).
		Permit(TriggerAdvance, StatusInProgress).
		Permit(TriggerApprove, StatusApproved).
		Permit(TriggerReject, StatusRejected).
		Permit(TriggerRequestChanges, StatusChangesRequested).
		Permit(TriggerCancel, StatusCancelled)

	b.Configure(StatusChangesRequested).
		Permit(TriggerResubmit, StatusInProgress).
		Permit(TriggerCancel, StatusCancelled)

	return b.Build()
}

// InstanceTransitions exposes the instance legality table
func InstanceTransitions() *TransitionTable[InstanceStatus, InstanceTrigger] {
	return instanceTransitions
}

// InstanceState is one variant of the instance lifecycle. Each variant carries
// only the fields that are meaningful in that state.
type InstanceState interface {
	Status() InstanceStatus
	isInstanceState()
}

// DraftState: created, not yet submitted
type DraftState struct{}

// PendingState: submitted, no step started
type PendingState struct {
	SubmittedAt time.Time
}

// InProgressState: one approval step is active
type InProgressState struct {
	SubmittedAt time.Time
	CurrentStep string
}

// ApprovedState: every step approved
type ApprovedState struct {
	SubmittedAt time.Time
	CurrentStep string
	CompletedAt time.Time
}

// RejectedState: a step rejected the request
type RejectedState struct {
	SubmittedAt time.Time
	CurrentStep string
	CompletedAt time.Time
}

// ChangesRequestedState: sent back to the initiator, not terminal
type ChangesRequestedState struct {
	SubmittedAt time.Time
	CurrentStep string
}

// CancelledState: withdrawn by the initiator. From records the state it left.
type CancelledState struct {
	From        InstanceStatus
	Reason      string
	SubmittedAt *time.Time
	CurrentStep string
	CompletedAt time.Time
}

func (DraftState) Status() InstanceStatus            { return StatusDraft }
func (PendingState) Status() InstanceStatus          { return StatusPending }
func (InProgressState) Status() InstanceStatus       { return StatusInProgress }
func (ApprovedState) Status() InstanceStatus         { return StatusApproved }
func (RejectedState) Status() InstanceStatus         { return StatusRejected }
func (ChangesRequestedState) Status() InstanceStatus { return StatusChangesRequested }
func (CancelledState) Status() InstanceStatus        { return StatusCancelled }

func (DraftState) isInstanceState()            {}
func (PendingState) isInstanceState()          {}
func (InProgressState) isInstanceState()       {}
func (ApprovedState) isInstanceState()         {}
func (RejectedState) isInstanceState()         {}
func (ChangesRequestedState) isInstanceState() {}
func (CancelledState) isInstanceState()        {}
