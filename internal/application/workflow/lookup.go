package workflow

import (
	"context"

	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

const (
	entityDefinition = "workflow definition"
	entityInstance   = "workflow instance"
	entityStep       = "workflow step"
)

type displayRef int64

func (n displayRef) String() string {
	return domainwf.FormatDisplayID(domainwf.EntityInstance, int64(n))
}

type stepDisplayRef int64

func (n stepDisplayRef) String() string {
	return domainwf.FormatDisplayID(domainwf.EntityStep, int64(n))
}

func (e *engineImpl) loadDefinition(ctx context.Context, tenant domainwf.TenantID, id domainwf.DefinitionID) (*domainwf.Definition, error) {
	def, err := e.definitions.FindByID(ctx, tenant, id)
	if err != nil {
		return nil, wrap(err, "load definition %s", id)
	}
	if def == nil {
		return nil, domainwf.NewNotFound(entityDefinition, id)
	}
	return def, nil
}

func (e *engineImpl) loadInstance(ctx context.Context, tenant domainwf.TenantID, ref InstanceRef) (*domainwf.Instance, error) {
	var (
		inst *domainwf.Instance
		err  error
	)
	switch {
	case !ref.ID.IsZero():
		inst, err = e.instances.FindByID(ctx, tenant, ref.ID)
		if err == nil && inst == nil {
			return nil, domainwf.NewNotFound(entityInstance, ref.ID)
		}
	case ref.DisplayNumber > 0:
		inst, err = e.instances.FindByDisplayNumber(ctx, tenant, ref.DisplayNumber)
		if err == nil && inst == nil {
			return nil, domainwf.NewNotFound(entityInstance, displayRef(ref.DisplayNumber))
		}
	default:
		return nil, domainwf.Validationf("instance id or display number is required")
	}
	if err != nil {
		return nil, wrap(err, "load instance")
	}
	return inst, nil
}

// loadStep resolves ref and returns the step with its instance
func (e *engineImpl) loadStep(ctx context.Context, tenant domainwf.TenantID, ref StepRef) (*domainwf.Step, *domainwf.Instance, error) {
	if !ref.ID.IsZero() {
		step, err := e.steps.FindByID(ctx, tenant, ref.ID)
		if err != nil {
			return nil, nil, wrap(err, "load step %s", ref.ID)
		}
		if step == nil {
			return nil, nil, domainwf.NewNotFound(entityStep, ref.ID)
		}
		inst, err := e.loadInstance(ctx, tenant, InstanceByID(step.InstanceID))
		if err != nil {
			return nil, nil, err
		}
		return step, inst, nil
	}

	if ref.InstanceNumber <= 0 || ref.DisplayNumber <= 0 {
		return nil, nil, domainwf.Validationf("step id or display numbers are required")
	}
	inst, err := e.loadInstance(ctx, tenant, InstanceByNumber(ref.InstanceNumber))
	if err != nil {
		return nil, nil, err
	}
	step, err := e.steps.FindByDisplayNumber(ctx, tenant, inst.ID, ref.DisplayNumber)
	if err != nil {
		return nil, nil, wrap(err, "load step")
	}
	if step == nil {
		return nil, nil, domainwf.NewNotFound(entityStep, stepDisplayRef(ref.DisplayNumber))
	}
	return step, inst, nil
}

func (e *engineImpl) loadSteps(ctx context.Context, tenant domainwf.TenantID, inst *domainwf.Instance) ([]*domainwf.Step, error) {
	steps, err := e.steps.FindByInstance(ctx, tenant, inst.ID)
	if err != nil {
		return nil, wrap(err, "load steps of %s", inst.DisplayID())
	}
	return steps, nil
}

func (e *engineImpl) view(ctx context.Context, tenant domainwf.TenantID, inst *domainwf.Instance) (*InstanceView, error) {
	steps, err := e.loadSteps(ctx, tenant, inst)
	if err != nil {
		return nil, err
	}
	return &InstanceView{Instance: inst, Steps: steps}, nil
}

func requireInitiator(inst *domainwf.Instance, actor Actor, action string) error {
	if inst.InitiatedBy != actor.UserID {
		return domainwf.Forbiddenf("only the initiator may %s %s", action, inst.DisplayID())
	}
	return nil
}
