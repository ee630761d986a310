package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ringi/internal/application/port"
	"github.com/garyjia/ringi/internal/application/workflow"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

// Version is reported by the health check
const Version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine workflow.Engine
	clock  domainwf.Clock
	probe  func(ctx context.Context) error
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine workflow.Engine, clock domainwf.Clock, logger Logger) *Handlers {
	return &Handlers{
		engine: engine,
		clock:  clock,
		logger: logger,
	}
}

// CreateDefinitionBody is the payload of POST /definitions
type CreateDefinitionBody struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Definition  json.RawMessage `json:"definition" binding:"required"`
}

// UpdateDefinitionBody is the payload of PUT /definitions/:id
type UpdateDefinitionBody struct {
	Name            string          `json:"name" binding:"required"`
	Description     string          `json:"description"`
	Definition      json.RawMessage `json:"definition"`
	ExpectedVersion int             `json:"expected_version" binding:"required"`
}

// ValidateDefinitionBody is the payload of POST /definitions/validate
type ValidateDefinitionBody struct {
	Definition json.RawMessage `json:"definition" binding:"required"`
}

// VersionBody carries only the optimistic lock token
type VersionBody struct {
	ExpectedVersion int `json:"expected_version" binding:"required"`
}

// CreateInstanceBody is the payload of POST /instances
type CreateInstanceBody struct {
	DefinitionID string          `json:"definition_id" binding:"required"`
	Title        string          `json:"title" binding:"required"`
	FormData     json.RawMessage `json:"form_data"`
}

// UpdateDraftBody is the payload of PUT /instances/:number
type UpdateDraftBody struct {
	Title           string          `json:"title" binding:"required"`
	FormData        json.RawMessage `json:"form_data"`
	ExpectedVersion int             `json:"expected_version" binding:"required"`
}

// ApproverBody assigns one approval step
type ApproverBody struct {
	StepID string `json:"step_id" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
}

// SubmitBody is the payload of submit and resubmit
type SubmitBody struct {
	Approvers       []ApproverBody  `json:"approvers" binding:"required"`
	FormData        json.RawMessage `json:"form_data"`
	ExpectedVersion int             `json:"expected_version" binding:"required"`
}

// CancelBody is the payload of POST /instances/:number/cancel
type CancelBody struct {
	Reason          string `json:"reason"`
	ExpectedVersion int    `json:"expected_version" binding:"required"`
}

// DecisionBody is the payload of approve, reject and request-changes
type DecisionBody struct {
	Comment         *string `json:"comment"`
	ExpectedVersion int     `json:"expected_version" binding:"required"`
}

// CommentBody is the payload of POST /instances/:number/comments
type CommentBody struct {
	Body string `json:"body" binding:"required"`
}

// ListQuery holds the query parameters of list endpoints
type ListQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func (q ListQuery) page() port.Page {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	return port.Page{Limit: limit, Offset: offset}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: formatTime(h.clock.Now()),
		Version:   Version,
	}
	if h.probe != nil {
		if err := h.probe(c.Request.Context()); err != nil {
			h.logger.Error("Health probe failed", "error", err)
			resp.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp, Error: "service unavailable"})
			return
		}
	}
	respondOK(c, http.StatusOK, resp)
}

// CreateDefinition handles POST /api/v1/definitions
func (h *Handlers) CreateDefinition(c *gin.Context) {
	var body CreateDefinitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	def, err := h.engine.CreateDefinition(c.Request.Context(), actorFrom(c), workflow.CreateDefinitionRequest{
		Name:        body.Name,
		Description: body.Description,
		Body:        body.Definition,
	})
	if err != nil {
		h.respondError(c, "create_definition", err)
		return
	}
	respondOK(c, http.StatusCreated, toDefinitionResponse(def))
}

// ListDefinitions handles GET /api/v1/definitions
func (h *Handlers) ListDefinitions(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	filter := port.DefinitionFilter{Page: q.page()}
	if q.Status != "" {
		status := domainwf.DefinitionStatus(q.Status)
		filter.Status = &status
	}

	defs, err := h.engine.ListDefinitions(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		h.respondError(c, "list_definitions", err)
		return
	}
	out := make([]DefinitionResponse, 0, len(defs))
	for _, d := range defs {
		out = append(out, toDefinitionResponse(d))
	}
	respondOK(c, http.StatusOK, out)
}

// GetDefinition handles GET /api/v1/definitions/:id
func (h *Handlers) GetDefinition(c *gin.Context) {
	id, err := domainwf.ParseDefinitionID(c.Param("id"))
	if err != nil {
		h.respondError(c, "get_definition", err)
		return
	}
	def, err := h.engine.GetDefinition(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, "get_definition", err)
		return
	}
	respondOK(c, http.StatusOK, toDefinitionResponse(def))
}

// UpdateDefinition handles PUT /api/v1/definitions/:id
func (h *Handlers) UpdateDefinition(c *gin.Context) {
	id, err := domainwf.ParseDefinitionID(c.Param("id"))
	if err != nil {
		h.respondError(c, "update_definition", err)
		return
	}
	var body UpdateDefinitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	def, err := h.engine.UpdateDefinition(c.Request.Context(), actorFrom(c), id, workflow.UpdateDefinitionRequest{
		Name:            body.Name,
		Description:     body.Description,
		Body:            body.Definition,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		h.respondError(c, "update_definition", err)
		return
	}
	respondOK(c, http.StatusOK, toDefinitionResponse(def))
}

// PublishDefinition handles POST /api/v1/definitions/:id/publish
func (h *Handlers) PublishDefinition(c *gin.Context) {
	h.changeDefinition(c, "publish_definition", h.engine.PublishDefinition)
}

// ArchiveDefinition handles POST /api/v1/definitions/:id/archive
func (h *Handlers) ArchiveDefinition(c *gin.Context) {
	h.changeDefinition(c, "archive_definition", h.engine.ArchiveDefinition)
}

type definitionChange func(ctx context.Context, actor workflow.Actor, id domainwf.DefinitionID, expectedVersion int) (*domainwf.Definition, error)

func (h *Handlers) changeDefinition(c *gin.Context, op string, change definitionChange) {
	id, err := domainwf.ParseDefinitionID(c.Param("id"))
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	var body VersionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	def, err := change(c.Request.Context(), actorFrom(c), id, body.ExpectedVersion)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	respondOK(c, http.StatusOK, toDefinitionResponse(def))
}

// ValidateDefinition handles POST /api/v1/definitions/validate. The result
// is returned with 200 whether or not the definition is valid.
func (h *Handlers) ValidateDefinition(c *gin.Context) {
	var body ValidateDefinitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	respondOK(c, http.StatusOK, h.engine.ValidateDefinition(body.Definition))
}
