package workflow

import (
	"context"
	"time"

	"github.com/garyjia/ringi/internal/domain/event"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

func (e *engineImpl) ApproveStep(ctx context.Context, actor Actor, ref StepRef, req DecisionRequest) (*InstanceView, error) {
	var out *InstanceView
	err := e.run(ctx, "approve_step", actor, func() error {
		now := e.clock.Now()
		return e.write(ctx, func(ctx context.Context, box *outbox) error {
			step, inst, steps, err := e.prepareDecision(ctx, actor, ref, req)
			if err != nil {
				return err
			}
			approved, err := step.Approve(req.Comment, now)
			if err != nil {
				return err
			}

			var (
				nextInst *domainwf.Instance
				nextStep *domainwf.Step
				pending  = nextPending(steps, step)
			)
			if pending != nil {
				nextStep, err = e.activate(ctx, inst, pending, now)
				if err != nil {
					return err
				}
				nextInst, err = inst.AdvanceToNextStep(nextStep.DefinitionStepID, now)
			} else {
				nextInst, err = inst.CompleteWithApproval(now)
			}
			if err != nil {
				return err
			}

			if err := e.steps.Update(ctx, actor.TenantID, approved, step.Version); err != nil {
				return wrap(err, "update step")
			}
			if nextStep != nil {
				if err := e.steps.Update(ctx, actor.TenantID, nextStep, pending.Version); err != nil {
					return wrap(err, "activate step")
				}
			}
			if err := e.instances.Update(ctx, actor.TenantID, nextInst, inst.Version); err != nil {
				return wrap(err, "update instance")
			}

			box.add(stepEvent(event.TypeStepApproved, actor, nextInst, approved, now))
			if nextStep != nil {
				box.add(instanceEvent(event.TypeInstanceAdvanced, actor, nextInst, now).
					WithPayload("current_step", nextStep.DefinitionStepID))
			} else {
				box.add(instanceEvent(event.TypeInstanceApproved, actor, nextInst, now))
			}

			out = &InstanceView{Instance: nextInst, Steps: replaceSteps(steps, approved, nextStep)}
			return nil
		})
	})
	return out, err
}

func (e *engineImpl) RejectStep(ctx context.Context, actor Actor, ref StepRef, req DecisionRequest) (*InstanceView, error) {
	return e.terminate(ctx, "reject_step", actor, ref, req, terminalDecision{
		step:      (*domainwf.Step).Reject,
		instance:  (*domainwf.Instance).CompleteWithRejection,
		stepEvent: event.TypeStepRejected,
		instEvent: event.TypeInstanceRejected,
	})
}

func (e *engineImpl) RequestChanges(ctx context.Context, actor Actor, ref StepRef, req DecisionRequest) (*InstanceView, error) {
	return e.terminate(ctx, "request_changes", actor, ref, req, terminalDecision{
		step:      (*domainwf.Step).RequestChanges,
		instance:  (*domainwf.Instance).CompleteWithRequestChanges,
		stepEvent: event.TypeStepChangesRequested,
		instEvent: event.TypeInstanceChangesRequested,
	})
}

// terminalDecision ends the chain: the step is completed, its pending
// siblings are skipped and the instance leaves InProgress
type terminalDecision struct {
	step      func(*domainwf.Step, *string, time.Time) (*domainwf.Step, error)
	instance  func(*domainwf.Instance, time.Time) (*domainwf.Instance, error)
	stepEvent event.Type
	instEvent event.Type
}

func (e *engineImpl) terminate(ctx context.Context, op string, actor Actor, ref StepRef, req DecisionRequest, d terminalDecision) (*InstanceView, error) {
	var out *InstanceView
	err := e.run(ctx, op, actor, func() error {
		now := e.clock.Now()
		return e.write(ctx, func(ctx context.Context, box *outbox) error {
			step, inst, steps, err := e.prepareDecision(ctx, actor, ref, req)
			if err != nil {
				return err
			}
			decided, err := d.step(step, req.Comment, now)
			if err != nil {
				return err
			}
			nextInst, err := d.instance(inst, now)
			if err != nil {
				return err
			}

			if err := e.steps.Update(ctx, actor.TenantID, decided, step.Version); err != nil {
				return wrap(err, "update step")
			}
			changed := []*domainwf.Step{decided}
			for _, s := range steps {
				if s.Status() != domainwf.StepStatusPending {
					continue
				}
				skipped, err := s.Skipped(now)
				if err != nil {
					return err
				}
				if err := e.steps.MarkSkipped(ctx, actor.TenantID, skipped); err != nil {
					return wrap(err, "skip step %s", s.DisplayID())
				}
				changed = append(changed, skipped)
			}
			if err := e.instances.Update(ctx, actor.TenantID, nextInst, inst.Version); err != nil {
				return wrap(err, "update instance")
			}

			box.add(stepEvent(d.stepEvent, actor, nextInst, decided, now))
			box.add(instanceEvent(d.instEvent, actor, nextInst, now).
				WithPayload("skipped_steps", len(changed)-1))

			out = &InstanceView{Instance: nextInst, Steps: replaceSteps(steps, changed...)}
			return nil
		})
	})
	return out, err
}

// prepareDecision loads the step, its instance and siblings, then checks the
// actor and the expected step version
func (e *engineImpl) prepareDecision(ctx context.Context, actor Actor, ref StepRef, req DecisionRequest) (*domainwf.Step, *domainwf.Instance, []*domainwf.Step, error) {
	step, inst, err := e.loadStep(ctx, actor.TenantID, ref)
	if err != nil {
		return nil, nil, nil, err
	}
	if !step.IsAssignedTo(actor.UserID) {
		return nil, nil, nil, domainwf.Forbiddenf("step %s is not assigned to you", step.DisplayID())
	}
	if err := domainwf.CheckVersion(entityStep, step.ID, step.Version, req.ExpectedVersion); err != nil {
		return nil, nil, nil, err
	}
	steps, err := e.loadSteps(ctx, actor.TenantID, inst)
	if err != nil {
		return nil, nil, nil, err
	}
	return step, inst, steps, nil
}

// activate starts the pending step and sets its due date from the definition
func (e *engineImpl) activate(ctx context.Context, inst *domainwf.Instance, pending *domainwf.Step, now time.Time) (*domainwf.Step, error) {
	next, err := pending.Activated(now)
	if err != nil {
		return nil, err
	}
	def, err := e.loadDefinition(ctx, inst.TenantID, inst.DefinitionID)
	if err != nil {
		return nil, err
	}
	if sd, ok := def.ApprovalStep(next.DefinitionStepID); ok {
		next.DueDate = dueDate(sd.DueInHours, now)
	}
	return next, nil
}

// replaceSteps returns steps with the changed ones swapped in by id
func replaceSteps(steps []*domainwf.Step, changed ...*domainwf.Step) []*domainwf.Step {
	byID := make(map[domainwf.StepID]*domainwf.Step, len(changed))
	for _, s := range changed {
		if s != nil {
			byID[s.ID] = s
		}
	}
	out := make([]*domainwf.Step, len(steps))
	for i, s := range steps {
		if c, ok := byID[s.ID]; ok {
			out[i] = c
			continue
		}
		out[i] = s
	}
	return out
}
