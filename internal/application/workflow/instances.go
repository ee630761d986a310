package workflow

import (
	"context"

	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/domain/event"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

func (e *engineImpl) CreateInstance(ctx context.Context, actor Actor, req CreateInstanceRequest) (*domainwf.Instance, error) {
	var out *domainwf.Instance
	err := e.run(ctx, "create_instance", actor, func() error {
		now := e.clock.Now()
		return e.write(ctx, func(ctx context.Context, box *outbox) error {
			def, err := e.loadDefinition(ctx, actor.TenantID, req.DefinitionID)
			if err != nil {
				return err
			}
			if def.Status != domainwf.DefinitionPublished {
				return domainwf.Validationf("definition %s is %s, only published definitions accept requests", def.ID, def.Status)
			}

			number, err := e.counter.Next(ctx, actor.TenantID, domainwf.EntityInstance)
			if err != nil {
				return wrap(err, "allocate instance number")
			}
			inst, err := domainwf.NewInstance(domainwf.NewInstanceParams{
				ID:                domainwf.NewInstanceID(),
				TenantID:          actor.TenantID,
				DefinitionID:      def.ID,
				DefinitionVersion: def.Version,
				DisplayNumber:     number,
				Title:             req.Title,
				FormData:          req.FormData,
				InitiatedBy:       actor.UserID,
				Now:               now,
			})
			if err != nil {
				return err
			}
			if err := e.instances.Insert(ctx, actor.TenantID, inst); err != nil {
				return wrap(err, "insert instance")
			}

			box.add(instanceEvent(event.TypeInstanceCreated, actor, inst, now))
			out = inst
			return nil
		})
	})
	return out, err
}

func (e *engineImpl) UpdateDraft(ctx context.Context, actor Actor, ref InstanceRef, req UpdateDraftRequest) (*domainwf.Instance, error) {
	var out *domainwf.Instance
	err := e.run(ctx, "update_draft", actor, func() error {
		now := e.clock.Now()
		return e.write(ctx, func(ctx context.Context, box *outbox) error {
			inst, err := e.loadInstance(ctx, actor.TenantID, ref)
			if err != nil {
				return err
			}
			if err := requireInitiator(inst, actor, "edit"); err != nil {
				return err
			}
			if err := domainwf.CheckVersion(entityInstance, inst.ID, inst.Version, req.ExpectedVersion); err != nil {
				return err
			}
			next, err := inst.DraftUpdated(req.Title, req.FormData, now)
			if err != nil {
				return err
			}
			if err := e.instances.Update(ctx, actor.TenantID, next, inst.Version); err != nil {
				return wrap(err, "update instance")
			}

			box.add(instanceEvent(event.TypeInstanceUpdated, actor, next, now))
			out = next
			return nil
		})
	})
	return out, err
}

func (e *engineImpl) SubmitInstance(ctx context.Context, actor Actor, ref InstanceRef, req SubmitRequest) (*InstanceView, error) {
	var out *InstanceView
	err := e.run(ctx, "submit_instance", actor, func() error {
		now := e.clock.Now()
		return e.write(ctx, func(ctx context.Context, box *outbox) error {
			inst, err := e.loadInstance(ctx, actor.TenantID, ref)
			if err != nil {
				return err
			}
			if err := requireInitiator(inst, actor, "submit"); err != nil {
				return err
			}
			if err := domainwf.CheckVersion(entityInstance, inst.ID, inst.Version, req.ExpectedVersion); err != nil {
				return err
			}
			pending, err := inst.Submitted(now)
			if err != nil {
				return err
			}

			def, err := e.loadDefinition(ctx, actor.TenantID, inst.DefinitionID)
			if err != nil {
				return err
			}
			if def.Status != domainwf.DefinitionPublished {
				return domainwf.Validationf("definition %s is %s and no longer accepts submissions", def.ID, def.Status)
			}
			defs, err := def.ApprovalSteps()
			if err != nil {
				return err
			}
			if err := validateApprovers(req.Approvers, defs); err != nil {
				return err
			}

			steps, err := e.buildStepChain(ctx, inst, defs, req.Approvers, now)
			if err != nil {
				return err
			}
			next, err := pending.WithCurrentStep(steps[0].DefinitionStepID, now)
			if err != nil {
				return err
			}

			if err := e.instances.Update(ctx, actor.TenantID, next, inst.Version); err != nil {
				return wrap(err, "update instance")
			}
			if err := e.steps.InsertAll(ctx, actor.TenantID, steps); err != nil {
				return wrap(err, "insert steps")
			}

			box.add(instanceEvent(event.TypeInstanceSubmitted, actor, next, now).
				WithPayload("step_count", len(steps)))
			out = &InstanceView{Instance: next, Steps: steps}
			return nil
		})
	})
	return out, err
}

func (e *engineImpl) ResubmitInstance(ctx context.Context, actor Actor, ref InstanceRef, req SubmitRequest) (*InstanceView, error) {
	var out *InstanceView
	err := e.run(ctx, "resubmit_instance", actor, func() error {
		now := e.clock.Now()
		return e.write(ctx, func(ctx context.Context, box *outbox) error {
			inst, err := e.loadInstance(ctx, actor.TenantID, ref)
			if err != nil {
				return err
			}
			if err := requireInitiator(inst, actor, "resubmit"); err != nil {
				return err
			}
			if err := domainwf.CheckVersion(entityInstance, inst.ID, inst.Version, req.ExpectedVersion); err != nil {
				return err
			}
			if inst.Status() != domainwf.StatusChangesRequested {
				_, err := domainwf.InstanceTransitions().Fire(inst.Status(), domainwf.TriggerResubmit)
				return err
			}

			def, err := e.loadDefinition(ctx, actor.TenantID, inst.DefinitionID)
			if err != nil {
				return err
			}
			defs, err := def.ApprovalSteps()
			if err != nil {
				return err
			}
			if err := validateApprovers(req.Approvers, defs); err != nil {
				return err
			}

			form := req.FormData
			if len(form) == 0 {
				form = inst.FormData
			}
			steps, err := e.buildStepChain(ctx, inst, defs, req.Approvers, now)
			if err != nil {
				return err
			}
			next, err := inst.Resubmitted(form, steps[0].DefinitionStepID, now)
			if err != nil {
				return err
			}

			if err := e.instances.Update(ctx, actor.TenantID, next, inst.Version); err != nil {
				return wrap(err, "update instance")
			}
			if err := e.steps.InsertAll(ctx, actor.TenantID, steps); err != nil {
				return wrap(err, "insert steps")
			}

			box.add(instanceEvent(event.TypeInstanceResubmitted, actor, next, now).
				WithPayload("step_count", len(steps)))
			view, err := e.view(ctx, actor.TenantID, next)
			if err != nil {
				return err
			}
			out = view
			return nil
		})
	})
	return out, err
}

func (e *engineImpl) CancelInstance(ctx context.Context, actor Actor, ref InstanceRef, req CancelRequest) (*domainwf.Instance, error) {
	var out *domainwf.Instance
	err := e.run(ctx, "cancel_instance", actor, func() error {
		now := e.clock.Now()
		return e.write(ctx, func(ctx context.Context, box *outbox) error {
			inst, err := e.loadInstance(ctx, actor.TenantID, ref)
			if err != nil {
				return err
			}
			if err := requireInitiator(inst, actor, "cancel"); err != nil {
				return err
			}
			if err := domainwf.CheckVersion(entityInstance, inst.ID, inst.Version, req.ExpectedVersion); err != nil {
				return err
			}
			next, err := inst.Cancelled(req.Reason, now)
			if err != nil {
				return err
			}
			if err := e.instances.Update(ctx, actor.TenantID, next, inst.Version); err != nil {
				return wrap(err, "update instance")
			}

			box.add(instanceEvent(event.TypeInstanceCancelled, actor, next, now).
				WithPayload("reason", next.State.(domainwf.CancelledState).Reason))
			out = next
			return nil
		})
	})
	return out, err
}

func (e *engineImpl) GetInstance(ctx context.Context, actor Actor, ref InstanceRef) (*InstanceView, error) {
	var out *InstanceView
	err := e.run(ctx, "get_instance", actor, func() error {
		inst, err := e.loadInstance(ctx, actor.TenantID, ref)
		if err != nil {
			return err
		}
		out, err = e.view(ctx, actor.TenantID, inst)
		return err
	})
	return out, err
}

func (e *engineImpl) ListMyInstances(ctx context.Context, actor Actor, filter port.InstanceFilter) ([]*domainwf.Instance, error) {
	var out []*domainwf.Instance
	err := e.run(ctx, "list_my_instances", actor, func() error {
		if filter.Status != nil && !filter.Status.IsValid() {
			return domainwf.Validationf("unknown instance status %q", *filter.Status)
		}
		list, err := e.instances.ListByInitiator(ctx, actor.TenantID, actor.UserID, filter)
		if err != nil {
			return wrap(err, "list instances")
		}
		out = list
		return nil
	})
	return out, err
}

func (e *engineImpl) ListMyTasks(ctx context.Context, actor Actor) ([]Task, error) {
	var out []Task
	err := e.run(ctx, "list_my_tasks", actor, func() error {
		steps, err := e.steps.ListActiveByAssignee(ctx, actor.TenantID, actor.UserID)
		if err != nil {
			return wrap(err, "list tasks")
		}

		cache := make(map[domainwf.InstanceID]*domainwf.Instance)
		out = make([]Task, 0, len(steps))
		for _, step := range steps {
			inst, ok := cache[step.InstanceID]
			if !ok {
				inst, err = e.instances.FindByID(ctx, actor.TenantID, step.InstanceID)
				if err != nil {
					return wrap(err, "load instance %s", step.InstanceID)
				}
				cache[step.InstanceID] = inst
			}
			// a cancelled instance leaves its active step behind
			if inst == nil || inst.Status() != domainwf.StatusInProgress {
				continue
			}
			out = append(out, Task{Step: step, Instance: inst})
		}
		return nil
	})
	return out, err
}
