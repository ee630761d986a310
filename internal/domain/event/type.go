package event

// Type identifies the type of domain event
type Type string

const (
	TypeDefinitionCreated   Type = "definition.created"
	TypeDefinitionUpdated   Type = "definition.updated"
	TypeDefinitionPublished Type = "definition.published"
	TypeDefinitionArchived  Type = "definition.archived"

	TypeInstanceCreated          Type = "instance.created"
	TypeInstanceUpdated          Type = "instance.updated"
	TypeInstanceSubmitted        Type = "instance.submitted"
	TypeInstanceAdvanced         Type = "instance.advanced"
	TypeInstanceApproved         Type = "instance.approved"
	TypeInstanceRejected         Type = "instance.rejected"
	TypeInstanceChangesRequested Type = "instance.changes_requested"
	TypeInstanceResubmitted      Type = "instance.resubmitted"
	TypeInstanceCancelled        Type = "instance.cancelled"

	TypeStepApproved         Type = "step.approved"
	TypeStepRejected         Type = "step.rejected"
	TypeStepChangesRequested Type = "step.changes_requested"
	TypeStepOverdue          Type = "step.overdue"

	TypeCommentPosted Type = "comment.posted"

	// TypeAll subscribes a handler to every event type
	TypeAll Type = "*"
)

var validTypes = map[Type]bool{
	TypeDefinitionCreated:        true,
	TypeDefinitionUpdated:        true,
	TypeDefinitionPublished:      true,
	TypeDefinitionArchived:       true,
	TypeInstanceCreated:          true,
	TypeInstanceUpdated:          true,
	TypeInstanceSubmitted:        true,
	TypeInstanceAdvanced:         true,
	TypeInstanceApproved:         true,
	TypeInstanceRejected:         true,
	TypeInstanceChangesRequested: true,
	TypeInstanceResubmitted:      true,
	TypeInstanceCancelled:        true,
	TypeStepApproved:             true,
	TypeStepRejected:             true,
	TypeStepChangesRequested:     true,
	TypeStepOverdue:              true,
	TypeCommentPosted:            true,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants.
// TypeAll is a subscription key, not an event type.
func (t Type) IsValid() bool {
	return validTypes[t]
}
