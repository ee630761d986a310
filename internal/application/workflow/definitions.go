package workflow

import (
	"context"

	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/domain/event"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

func (e *engineImpl) CreateDefinition(ctx context.Context, actor Actor, req CreateDefinitionRequest) (*domainwf.Definition, error) {
	var out *domainwf.Definition
	err := e.run(ctx, "create_definition", actor, func() error {
		now := e.clock.Now()
		def, err := domainwf.NewDefinition(domainwf.NewDefinitionParams{
			ID:          domainwf.NewDefinitionID(),
			TenantID:    actor.TenantID,
			Name:        req.Name,
			Description: req.Description,
			Body:        req.Body,
			CreatedBy:   actor.UserID,
			Now:         now,
		})
		if err != nil {
			return err
		}

		return e.write(ctx, func(ctx context.Context, box *outbox) error {
			if err := e.definitions.Insert(ctx, actor.TenantID, def); err != nil {
				return wrap(err, "insert definition")
			}
			box.add(definitionEvent(event.TypeDefinitionCreated, actor, def))
			out = def
			return nil
		})
	})
	return out, err
}

func (e *engineImpl) UpdateDefinition(ctx context.Context, actor Actor, id domainwf.DefinitionID, req UpdateDefinitionRequest) (*domainwf.Definition, error) {
	return e.changeDefinition(ctx, "update_definition", actor, id, req.ExpectedVersion, event.TypeDefinitionUpdated,
		func(def *domainwf.Definition) (*domainwf.Definition, error) {
			return def.Updated(req.Name, req.Description, req.Body, e.clock.Now())
		})
}

func (e *engineImpl) PublishDefinition(ctx context.Context, actor Actor, id domainwf.DefinitionID, expectedVersion int) (*domainwf.Definition, error) {
	return e.changeDefinition(ctx, "publish_definition", actor, id, expectedVersion, event.TypeDefinitionPublished,
		func(def *domainwf.Definition) (*domainwf.Definition, error) {
			return def.Published(e.clock.Now())
		})
}

func (e *engineImpl) ArchiveDefinition(ctx context.Context, actor Actor, id domainwf.DefinitionID, expectedVersion int) (*domainwf.Definition, error) {
	return e.changeDefinition(ctx, "archive_definition", actor, id, expectedVersion, event.TypeDefinitionArchived,
		func(def *domainwf.Definition) (*domainwf.Definition, error) {
			return def.Archived(e.clock.Now())
		})
}

func (e *engineImpl) changeDefinition(
	ctx context.Context,
	op string,
	actor Actor,
	id domainwf.DefinitionID,
	expectedVersion int,
	evtType event.Type,
	transition func(*domainwf.Definition) (*domainwf.Definition, error),
) (*domainwf.Definition, error) {
	var out *domainwf.Definition
	err := e.run(ctx, op, actor, func() error {
		return e.write(ctx, func(ctx context.Context, box *outbox) error {
			def, err := e.loadDefinition(ctx, actor.TenantID, id)
			if err != nil {
				return err
			}
			if err := domainwf.CheckVersion(entityDefinition, id, def.Version, expectedVersion); err != nil {
				return err
			}
			next, err := transition(def)
			if err != nil {
				return err
			}
			if err := e.definitions.Update(ctx, actor.TenantID, next, def.Version); err != nil {
				return wrap(err, "update definition")
			}
			box.add(definitionEvent(evtType, actor, next))
			out = next
			return nil
		})
	})
	return out, err
}

func (e *engineImpl) ValidateDefinition(body []byte) domainwf.ValidationResult {
	return domainwf.ValidateDefinition(body)
}

func (e *engineImpl) GetDefinition(ctx context.Context, actor Actor, id domainwf.DefinitionID) (*domainwf.Definition, error) {
	var out *domainwf.Definition
	err := e.run(ctx, "get_definition", actor, func() error {
		def, err := e.loadDefinition(ctx, actor.TenantID, id)
		out = def
		return err
	})
	return out, err
}

func (e *engineImpl) ListDefinitions(ctx context.Context, actor Actor, filter port.DefinitionFilter) ([]*domainwf.Definition, error) {
	var out []*domainwf.Definition
	err := e.run(ctx, "list_definitions", actor, func() error {
		if filter.Status != nil && !filter.Status.IsValid() {
			return domainwf.Validationf("unknown definition status %q", *filter.Status)
		}
		defs, err := e.definitions.List(ctx, actor.TenantID, filter)
		if err != nil {
			return wrap(err, "list definitions")
		}
		out = defs
		return nil
	})
	return out, err
}

func definitionEvent(typ event.Type, actor Actor, def *domainwf.Definition) *event.Event {
	return newEvent(typ, actor, def.UpdatedAt, map[string]interface{}{
		"definition_id": def.ID.String(),
		"name":          def.Name,
		"status":        def.Status.String(),
		"version":       def.Version,
	})
}
