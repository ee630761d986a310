package workflow

import (
	"context"

	"github.com/garyjia/ringi/internal/domain/event"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

func (e *engineImpl) PostComment(ctx context.Context, actor Actor, ref InstanceRef, body string) (*domainwf.Comment, error) {
	var out *domainwf.Comment
	err := e.run(ctx, "post_comment", actor, func() error {
		now := e.clock.Now()
		return e.write(ctx, func(ctx context.Context, box *outbox) error {
			inst, err := e.participantInstance(ctx, actor, ref)
			if err != nil {
				return err
			}
			comment, err := domainwf.NewComment(domainwf.NewCommentParams{
				ID:         domainwf.NewCommentID(),
				TenantID:   actor.TenantID,
				InstanceID: inst.ID,
				PostedBy:   actor.UserID,
				Body:       body,
				Now:        now,
			})
			if err != nil {
				return err
			}
			if err := e.comments.Insert(ctx, actor.TenantID, comment); err != nil {
				return wrap(err, "insert comment")
			}

			box.add(newEvent(event.TypeCommentPosted, actor, now, map[string]interface{}{
				"display_id": inst.DisplayID(),
				"comment_id": comment.ID.String(),
			}).ForInstance(inst.ID.String()))
			out = comment
			return nil
		})
	})
	return out, err
}

func (e *engineImpl) ListComments(ctx context.Context, actor Actor, ref InstanceRef) ([]*domainwf.Comment, error) {
	var out []*domainwf.Comment
	err := e.run(ctx, "list_comments", actor, func() error {
		inst, err := e.participantInstance(ctx, actor, ref)
		if err != nil {
			return err
		}
		comments, err := e.comments.ListByInstance(ctx, actor.TenantID, inst.ID)
		if err != nil {
			return wrap(err, "list comments")
		}
		out = comments
		return nil
	})
	return out, err
}

func (e *engineImpl) participantInstance(ctx context.Context, actor Actor, ref InstanceRef) (*domainwf.Instance, error) {
	inst, err := e.loadInstance(ctx, actor.TenantID, ref)
	if err != nil {
		return nil, err
	}
	steps, err := e.loadSteps(ctx, actor.TenantID, inst)
	if err != nil {
		return nil, err
	}
	if !domainwf.IsParticipant(inst, steps, actor.UserID) {
		return nil, domainwf.Forbiddenf("only participants of %s may see or post comments", inst.DisplayID())
	}
	return inst, nil
}
