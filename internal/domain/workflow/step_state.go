package workflow

import "time"

// StepStatus is the persisted discriminator of a step's state
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
)

var validStepStatuses = map[StepStatus]bool{
	StepStatusPending:   true,
	StepStatusActive:    true,
	StepStatusCompleted: true,
	StepStatusSkipped:   true,
}

func (s StepStatus) String() string { return string(s) }

// IsValid returns true if the status is known
func (s StepStatus) IsValid() bool { return validStepStatuses[s] }

// Decision is the outcome recorded on a completed step
type Decision string

const (
	DecisionApproved       Decision = "approved"
	DecisionRejected       Decision = "rejected"
	DecisionRequestChanges Decision = "request_changes"
)

// IsValid returns true if the decision is known
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionRequestChanges:
		return true
	}
	return false
}

func (d Decision) String() string { return string(d) }

// StepTrigger names a step transition
type StepTrigger string

const (
	StepTriggerActivate       StepTrigger = "activate"
	StepTriggerApprove        StepTrigger = "approve"
	StepTriggerReject         StepTrigger = "reject"
	StepTriggerRequestChanges StepTrigger = "request_changes"
	StepTriggerSkip           StepTrigger = "skip"
)

// AllStepTriggers lists every step trigger
var AllStepTriggers = []StepTrigger{
	StepTriggerActivate, StepTriggerApprove, StepTriggerReject,
	StepTriggerRequestChanges, StepTriggerSkip,
}

var stepTransitions = buildStepTransitions()

func buildStepTransitions() *TransitionTable[StepStatus, StepTrigger] {
	b := NewBuilder[StepStatus, StepTrigger]()

	b.Configure(StepStatusPending).
		Permit(StepTriggerActivate, StepStatusActive).
		Permit(StepTriggerSkip, StepStatusSkipped)

	b.Configure(StepStatusActive).
		Permit(StepTriggerApprove, StepStatusCompleted).
		Permit(StepTriggerReject, StepStatusCompleted).
		Permit(StepTriggerRequestChanges, StepStatusCompleted)

	return b.Build()
}

// StepTransitions exposes the step legality table
func StepTransitions() *TransitionTable[StepStatus, StepTrigger] {
	return stepTransitions
}

// StepState is one variant of the step lifecycle
type StepState interface {
	Status() StepStatus
	isStepState()
}

// StepPending waits for the previous step to be approved
type StepPending struct{}

// StepActive is the single step currently awaiting a decision
type StepActive struct {
	StartedAt time.Time
}

// StepCompleted carries the decision; only reachable from StepActive
type StepCompleted struct {
	Decision    Decision
	Comment     *string
	StartedAt   time.Time
	CompletedAt time.Time
}

// StepSkipped was still pending when the instance was rejected or sent back
type StepSkipped struct{}

func (StepPending) Status() StepStatus   { return StepStatusPending }
func (StepActive) Status() StepStatus    { return StepStatusActive }
func (StepCompleted) Status() StepStatus { return StepStatusCompleted }
func (StepSkipped) Status() StepStatus   { return StepStatusSkipped }

func (StepPending) isStepState()   {}
func (StepActive) isStepState()    {}
func (StepCompleted) isStepState() {}
func (StepSkipped) isStepState()   {}
