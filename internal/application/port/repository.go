package port

import (
	"context"
	"time"

	"github.com/garyjia/ringi/internal/domain/workflow"
)

// Page bounds a list query. A zero Limit means the repository default.
type Page struct {
	Limit  int
	Offset int
}

// DefinitionFilter narrows ListDefinitions
type DefinitionFilter struct {
	Status *workflow.DefinitionStatus
	Page
}

// InstanceFilter narrows ListByInitiator
type InstanceFilter struct {
	Status *workflow.InstanceStatus
	Page
}

// Every repository method takes the tenant explicitly. Reads only return rows
// of that tenant; writes refuse an aggregate that belongs to another tenant.
// Finders return nil, nil when the row does not exist.

// DefinitionRepository persists workflow definitions
type DefinitionRepository interface {
	Insert(ctx context.Context, tenant workflow.TenantID, def *workflow.Definition) error

	// Update writes def when the stored version equals expectedVersion,
	// otherwise it returns a ConflictError
	Update(ctx context.Context, tenant workflow.TenantID, def *workflow.Definition, expectedVersion int) error

	FindByID(ctx context.Context, tenant workflow.TenantID, id workflow.DefinitionID) (*workflow.Definition, error)
	List(ctx context.Context, tenant workflow.TenantID, filter DefinitionFilter) ([]*workflow.Definition, error)
}

// InstanceRepository persists workflow instances
type InstanceRepository interface {
	Insert(ctx context.Context, tenant workflow.TenantID, inst *workflow.Instance) error
	Update(ctx context.Context, tenant workflow.TenantID, inst *workflow.Instance, expectedVersion int) error
	FindByID(ctx context.Context, tenant workflow.TenantID, id workflow.InstanceID) (*workflow.Instance, error)
	FindByDisplayNumber(ctx context.Context, tenant workflow.TenantID, number int64) (*workflow.Instance, error)

	// ListByInitiator returns the user's instances, newest first
	ListByInitiator(ctx context.Context, tenant workflow.TenantID, user workflow.UserID, filter InstanceFilter) ([]*workflow.Instance, error)
}

// StepRepository persists approval steps
type StepRepository interface {
	InsertAll(ctx context.Context, tenant workflow.TenantID, steps []*workflow.Step) error
	Update(ctx context.Context, tenant workflow.TenantID, step *workflow.Step, expectedVersion int) error

	// MarkSkipped persists a skipped step without a version check
	MarkSkipped(ctx context.Context, tenant workflow.TenantID, step *workflow.Step) error

	FindByID(ctx context.Context, tenant workflow.TenantID, id workflow.StepID) (*workflow.Step, error)
	FindByDisplayNumber(ctx context.Context, tenant workflow.TenantID, instanceID workflow.InstanceID, number int64) (*workflow.Step, error)

	// FindByInstance returns every step of the instance ordered by display number
	FindByInstance(ctx context.Context, tenant workflow.TenantID, instanceID workflow.InstanceID) ([]*workflow.Step, error)

	// ListActiveByAssignee returns the user's open tasks, oldest first
	ListActiveByAssignee(ctx context.Context, tenant workflow.TenantID, user workflow.UserID) ([]*workflow.Step, error)
}

// OverdueStepFinder scans every tenant for active steps past their due date.
// It backs background jobs, which run without a tenant of their own.
type OverdueStepFinder interface {
	// ListOverdue returns active steps of in-progress instances whose due
	// date is before now, ordered by due date then step id. A non-nil after
	// resumes the listing right behind that position.
	ListOverdue(ctx context.Context, now time.Time, after *OverdueCursor, limit int) ([]*workflow.Step, error)
}

// OverdueCursor is the position of the last step of an overdue page
type OverdueCursor struct {
	DueDate time.Time
	StepID  workflow.StepID
}

// CursorAfter returns the cursor that follows step
func CursorAfter(step *workflow.Step) *OverdueCursor {
	if step == nil || step.DueDate == nil {
		return nil
	}
	return &OverdueCursor{DueDate: *step.DueDate, StepID: step.ID}
}

// CommentRepository persists instance comments
type CommentRepository interface {
	Insert(ctx context.Context, tenant workflow.TenantID, comment *workflow.Comment) error

	// ListByInstance returns comments oldest first
	ListByInstance(ctx context.Context, tenant workflow.TenantID, instanceID workflow.InstanceID) ([]*workflow.Comment, error)
}

// DisplayNumberCounter hands out tenant-scoped sequential display numbers
type DisplayNumberCounter interface {
	Next(ctx context.Context, tenant workflow.TenantID, entity workflow.DisplayEntity) (int64, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
