package workflow

import (
	"context"
	"encoding/json"

	"github.com/garyjia/ringi/internal/application/port"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

// Engine orchestrates definitions, instances, steps and comments for every
// tenant. Each write runs in one transaction; audit events are dispatched
// after commit.
type Engine interface {
	CreateDefinition(ctx context.Context, actor Actor, req CreateDefinitionRequest) (*domainwf.Definition, error)
	UpdateDefinition(ctx context.Context, actor Actor, id domainwf.DefinitionID, req UpdateDefinitionRequest) (*domainwf.Definition, error)
	PublishDefinition(ctx context.Context, actor Actor, id domainwf.DefinitionID, expectedVersion int) (*domainwf.Definition, error)
	ArchiveDefinition(ctx context.Context, actor Actor, id domainwf.DefinitionID, expectedVersion int) (*domainwf.Definition, error)
	ValidateDefinition(body []byte) domainwf.ValidationResult
	GetDefinition(ctx context.Context, actor Actor, id domainwf.DefinitionID) (*domainwf.Definition, error)
	ListDefinitions(ctx context.Context, actor Actor, filter port.DefinitionFilter) ([]*domainwf.Definition, error)

	CreateInstance(ctx context.Context, actor Actor, req CreateInstanceRequest) (*domainwf.Instance, error)
	UpdateDraft(ctx context.Context, actor Actor, ref InstanceRef, req UpdateDraftRequest) (*domainwf.Instance, error)
	SubmitInstance(ctx context.Context, actor Actor, ref InstanceRef, req SubmitRequest) (*InstanceView, error)
	ResubmitInstance(ctx context.Context, actor Actor, ref InstanceRef, req SubmitRequest) (*InstanceView, error)
	CancelInstance(ctx context.Context, actor Actor, ref InstanceRef, req CancelRequest) (*domainwf.Instance, error)

	ApproveStep(ctx context.Context, actor Actor, ref StepRef, req DecisionRequest) (*InstanceView, error)
	RejectStep(ctx context.Context, actor Actor, ref StepRef, req DecisionRequest) (*InstanceView, error)
	RequestChanges(ctx context.Context, actor Actor, ref StepRef, req DecisionRequest) (*InstanceView, error)

	GetInstance(ctx context.Context, actor Actor, ref InstanceRef) (*InstanceView, error)
	ListMyInstances(ctx context.Context, actor Actor, filter port.InstanceFilter) ([]*domainwf.Instance, error)
	ListMyTasks(ctx context.Context, actor Actor) ([]Task, error)

	PostComment(ctx context.Context, actor Actor, ref InstanceRef, body string) (*domainwf.Comment, error)
	ListComments(ctx context.Context, actor Actor, ref InstanceRef) ([]*domainwf.Comment, error)
}

// Actor is the authenticated caller
type Actor struct {
	TenantID domainwf.TenantID
	UserID   domainwf.UserID
}

// CreateDefinitionRequest holds the input for CreateDefinition
type CreateDefinitionRequest struct {
	Name        string
	Description string
	Body        json.RawMessage
}

// UpdateDefinitionRequest replaces a draft definition. An empty Body keeps
// the stored one.
type UpdateDefinitionRequest struct {
	Name            string
	Description     string
	Body            json.RawMessage
	ExpectedVersion int
}

// CreateInstanceRequest holds the input for CreateInstance
type CreateInstanceRequest struct {
	DefinitionID domainwf.DefinitionID
	Title        string
	FormData     json.RawMessage
}

// UpdateDraftRequest replaces title and form data of a draft
type UpdateDraftRequest struct {
	Title           string
	FormData        json.RawMessage
	ExpectedVersion int
}

// Approver assigns a user to one approval step of the definition
type Approver struct {
	StepID string
	UserID domainwf.UserID
}

// SubmitRequest starts (or restarts) the approval chain. Approvers must list
// the definition's approval steps in order. On resubmit an empty FormData
// keeps the current form.
type SubmitRequest struct {
	Approvers       []Approver
	FormData        json.RawMessage
	ExpectedVersion int
}

// CancelRequest withdraws an instance
type CancelRequest struct {
	Reason          string
	ExpectedVersion int
}

// DecisionRequest records an approver's decision. ExpectedVersion is the
// step's version.
type DecisionRequest struct {
	Comment         *string
	ExpectedVersion int
}

// InstanceView is an instance with all its steps ordered by display number
type InstanceView struct {
	Instance *domainwf.Instance
	Steps    []*domainwf.Step
}

// Task is an active step assigned to the caller
type Task struct {
	Step     *domainwf.Step
	Instance *domainwf.Instance
}

// InstanceRef addresses an instance by id or by display number
type InstanceRef struct {
	ID            domainwf.InstanceID
	DisplayNumber int64
}

// InstanceByID refers to an instance by its id
func InstanceByID(id domainwf.InstanceID) InstanceRef {
	return InstanceRef{ID: id}
}

// InstanceByNumber refers to an instance by its display number (WF-n)
func InstanceByNumber(n int64) InstanceRef {
	return InstanceRef{DisplayNumber: n}
}

// StepRef addresses a step by id, or by the display numbers of its
// instance and itself
type StepRef struct {
	ID             domainwf.StepID
	InstanceNumber int64
	DisplayNumber  int64
}

// StepByID refers to a step by its id
func StepByID(id domainwf.StepID) StepRef {
	return StepRef{ID: id}
}

// StepByNumber refers to STEP-step inside WF-instance
func StepByNumber(instance, step int64) StepRef {
	return StepRef{InstanceNumber: instance, DisplayNumber: step}
}
