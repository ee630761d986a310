package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/application/workflow"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

// instanceRef reads :number as WF-n or n
func instanceRef(c *gin.Context) (workflow.InstanceRef, error) {
	n, err := domainwf.ParseDisplayNumber(domainwf.EntityInstance, c.Param("number"))
	if err != nil {
		return workflow.InstanceRef{}, err
	}
	return workflow.InstanceByNumber(n), nil
}

// stepRef reads :number and :step as display numbers
func stepRef(c *gin.Context) (workflow.StepRef, error) {
	inst, err := domainwf.ParseDisplayNumber(domainwf.EntityInstance, c.Param("number"))
	if err != nil {
		return workflow.StepRef{}, err
	}
	step, err := domainwf.ParseDisplayNumber(domainwf.EntityStep, c.Param("step"))
	if err != nil {
		return workflow.StepRef{}, err
	}
	return workflow.StepByNumber(inst, step), nil
}

// CreateInstance handles POST /api/v1/instances
func (h *Handlers) CreateInstance(c *gin.Context) {
	var body CreateInstanceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	defID, err := domainwf.ParseDefinitionID(body.DefinitionID)
	if err != nil {
		h.respondError(c, "create_instance", err)
		return
	}

	inst, err := h.engine.CreateInstance(c.Request.Context(), actorFrom(c), workflow.CreateInstanceRequest{
		DefinitionID: defID,
		Title:        body.Title,
		FormData:     body.FormData,
	})
	if err != nil {
		h.respondError(c, "create_instance", err)
		return
	}
	respondOK(c, http.StatusCreated, toInstanceResponse(inst))
}

// ListMyInstances handles GET /api/v1/instances
func (h *Handlers) ListMyInstances(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	filter := port.InstanceFilter{Page: q.page()}
	if q.Status != "" {
		status := domainwf.InstanceStatus(q.Status)
		filter.Status = &status
	}

	instances, err := h.engine.ListMyInstances(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		h.respondError(c, "list_my_instances", err)
		return
	}
	out := make([]InstanceResponse, 0, len(instances))
	for _, inst := range instances {
		out = append(out, toInstanceResponse(inst))
	}
	respondOK(c, http.StatusOK, out)
}

// GetInstance handles GET /api/v1/instances/:number
func (h *Handlers) GetInstance(c *gin.Context) {
	ref, err := instanceRef(c)
	if err != nil {
		h.respondError(c, "get_instance", err)
		return
	}
	view, err := h.engine.GetInstance(c.Request.Context(), actorFrom(c), ref)
	if err != nil {
		h.respondError(c, "get_instance", err)
		return
	}
	respondOK(c, http.StatusOK, toViewResponse(view, h.clock.Now()))
}

// UpdateDraft handles PUT /api/v1/instances/:number
func (h *Handlers) UpdateDraft(c *gin.Context) {
	ref, err := instanceRef(c)
	if err != nil {
		h.respondError(c, "update_draft", err)
		return
	}
	var body UpdateDraftBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	inst, err := h.engine.UpdateDraft(c.Request.Context(), actorFrom(c), ref, workflow.UpdateDraftRequest{
		Title:           body.Title,
		FormData:        body.FormData,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		h.respondError(c, "update_draft", err)
		return
	}
	respondOK(c, http.StatusOK, toInstanceResponse(inst))
}

// SubmitInstance handles POST /api/v1/instances/:number/submit
func (h *Handlers) SubmitInstance(c *gin.Context) {
	h.submit(c, "submit_instance", h.engine.SubmitInstance)
}

// ResubmitInstance handles POST /api/v1/instances/:number/resubmit
func (h *Handlers) ResubmitInstance(c *gin.Context) {
	h.submit(c, "resubmit_instance", h.engine.ResubmitInstance)
}

type submitFunc func(ctx context.Context, actor workflow.Actor, ref workflow.InstanceRef, req workflow.SubmitRequest) (*workflow.InstanceView, error)

func (h *Handlers) submit(c *gin.Context, op string, fn submitFunc) {
	ref, err := instanceRef(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	var body SubmitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	approvers := make([]workflow.Approver, 0, len(body.Approvers))
	for _, a := range body.Approvers {
		user, err := domainwf.ParseUserID(a.UserID)
		if err != nil {
			h.respondError(c, op, err)
			return
		}
		approvers = append(approvers, workflow.Approver{StepID: a.StepID, UserID: user})
	}

	view, err := fn(c.Request.Context(), actorFrom(c), ref, workflow.SubmitRequest{
		Approvers:       approvers,
		FormData:        body.FormData,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	respondOK(c, http.StatusOK, toViewResponse(view, h.clock.Now()))
}

// CancelInstance handles POST /api/v1/instances/:number/cancel
func (h *Handlers) CancelInstance(c *gin.Context) {
	ref, err := instanceRef(c)
	if err != nil {
		h.respondError(c, "cancel_instance", err)
		return
	}
	var body CancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	inst, err := h.engine.CancelInstance(c.Request.Context(), actorFrom(c), ref, workflow.CancelRequest{
		Reason:          body.Reason,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		h.respondError(c, "cancel_instance", err)
		return
	}
	respondOK(c, http.StatusOK, toInstanceResponse(inst))
}

// ApproveStep handles POST /api/v1/instances/:number/steps/:step/approve
func (h *Handlers) ApproveStep(c *gin.Context) {
	h.decide(c, "approve_step", h.engine.ApproveStep)
}

// RejectStep handles POST /api/v1/instances/:number/steps/:step/reject
func (h *Handlers) RejectStep(c *gin.Context) {
	h.decide(c, "reject_step", h.engine.RejectStep)
}

// RequestChanges handles POST /api/v1/instances/:number/steps/:step/request-changes
func (h *Handlers) RequestChanges(c *gin.Context) {
	h.decide(c, "request_changes", h.engine.RequestChanges)
}

type decisionFunc func(ctx context.Context, actor workflow.Actor, ref workflow.StepRef, req workflow.DecisionRequest) (*workflow.InstanceView, error)

func (h *Handlers) decide(c *gin.Context, op string, fn decisionFunc) {
	ref, err := stepRef(c)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	var body DecisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	view, err := fn(c.Request.Context(), actorFrom(c), ref, workflow.DecisionRequest{
		Comment:         body.Comment,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	respondOK(c, http.StatusOK, toViewResponse(view, h.clock.Now()))
}

// ListMyTasks handles GET /api/v1/tasks
func (h *Handlers) ListMyTasks(c *gin.Context) {
	tasks, err := h.engine.ListMyTasks(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, "list_my_tasks", err)
		return
	}
	now := h.clock.Now()
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskResponse{
			Step:     toStepResponse(t.Step, now),
			Instance: toInstanceResponse(t.Instance),
		})
	}
	respondOK(c, http.StatusOK, out)
}

// PostComment handles POST /api/v1/instances/:number/comments
func (h *Handlers) PostComment(c *gin.Context) {
	ref, err := instanceRef(c)
	if err != nil {
		h.respondError(c, "post_comment", err)
		return
	}
	var body CommentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	comment, err := h.engine.PostComment(c.Request.Context(), actorFrom(c), ref, body.Body)
	if err != nil {
		h.respondError(c, "post_comment", err)
		return
	}
	respondOK(c, http.StatusCreated, toCommentResponse(comment))
}

// ListComments handles GET /api/v1/instances/:number/comments
func (h *Handlers) ListComments(c *gin.Context) {
	ref, err := instanceRef(c)
	if err != nil {
		h.respondError(c, "list_comments", err)
		return
	}
	comments, err := h.engine.ListComments(c.Request.Context(), actorFrom(c), ref)
	if err != nil {
		h.respondError(c, "list_comments", err)
		return
	}
	out := make([]CommentResponse, 0, len(comments))
	for _, cm := range comments {
		out = append(out, toCommentResponse(cm))
	}
	respondOK(c, http.StatusOK, out)
}
