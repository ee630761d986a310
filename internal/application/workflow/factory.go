package workflow

import (
	"context"
	"time"

	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

// validateApprovers checks that approvers cover the approval steps one to one
// and in execution order
func validateApprovers(approvers []Approver, defs []domainwf.ApprovalStepDef) error {
	if len(approvers) != len(defs) {
		return domainwf.Validationf("expected %d approvers, got %d", len(defs), len(approvers))
	}
	for i, a := range approvers {
		if a.StepID != defs[i].ID {
			return domainwf.Validationf("approver #%d is for step %q, expected %q", i+1, a.StepID, defs[i].ID)
		}
		if a.UserID.IsZero() {
			return domainwf.Validationf("approver for step %q has no user", a.StepID)
		}
	}
	return nil
}

// buildStepChain creates one step per approval step. The first step starts
// Active with its due date set; the others wait as Pending.
func (e *engineImpl) buildStepChain(
	ctx context.Context,
	inst *domainwf.Instance,
	defs []domainwf.ApprovalStepDef,
	approvers []Approver,
	now time.Time,
) ([]*domainwf.Step, error) {
	steps := make([]*domainwf.Step, 0, len(defs))
	for i, def := range defs {
		number, err := e.counter.Next(ctx, inst.TenantID, domainwf.EntityStep)
		if err != nil {
			return nil, wrap(err, "allocate step number")
		}
		assignee := approvers[i].UserID
		params := domainwf.NewStepParams{
			ID:               domainwf.NewStepID(),
			TenantID:         inst.TenantID,
			InstanceID:       inst.ID,
			DisplayNumber:    number,
			Position:         i + 1,
			DefinitionStepID: def.ID,
			Name:             def.Name,
			AssignedTo:       &assignee,
			Now:              now,
		}
		if i == 0 {
			params.DueDate = dueDate(def.DueInHours, now)
			steps = append(steps, domainwf.NewActiveStep(params))
			continue
		}
		steps = append(steps, domainwf.NewStep(params))
	}
	return steps, nil
}

func dueDate(hours int, now time.Time) *time.Time {
	if hours <= 0 {
		return nil
	}
	if hours > domainwf.MaxDueInHours {
		hours = domainwf.MaxDueInHours
	}
	due := now.Add(time.Duration(hours) * time.Hour)
	return &due
}

// nextPending returns the pending step right after current, if any
func nextPending(steps []*domainwf.Step, current *domainwf.Step) *domainwf.Step {
	for _, s := range steps {
		if s.Position == current.Position+1 && s.Status() == domainwf.StepStatusPending {
			return s
		}
	}
	return nil
}
