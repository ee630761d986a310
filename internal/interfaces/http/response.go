package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ringi/internal/application/workflow"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Issues  interface{} `json:"issues,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DefinitionResponse represents a workflow definition in API responses
type DefinitionResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status"`
	Version     int             `json:"version"`
	Body        json.RawMessage `json:"definition"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// InstanceResponse represents a workflow instance in API responses
type InstanceResponse struct {
	ID                string          `json:"id"`
	DisplayID         string          `json:"display_id"`
	DisplayNumber     int64           `json:"display_number"`
	DefinitionID      string          `json:"definition_id"`
	DefinitionVersion int             `json:"definition_version"`
	Title             string          `json:"title"`
	FormData          json.RawMessage `json:"form_data"`
	Status            string          `json:"status"`
	CurrentStepID     *string         `json:"current_step_id,omitempty"`
	InitiatedBy       string          `json:"initiated_by"`
	Version           int             `json:"version"`
	SubmittedAt       *string         `json:"submitted_at,omitempty"`
	CompletedAt       *string         `json:"completed_at,omitempty"`
	CancelledFrom     *string         `json:"cancelled_from,omitempty"`
	CancelReason      *string         `json:"cancel_reason,omitempty"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

// StepResponse represents an approval step in API responses
type StepResponse struct {
	ID               string  `json:"id"`
	DisplayID        string  `json:"display_id"`
	DisplayNumber    int64   `json:"display_number"`
	Position         int     `json:"position"`
	DefinitionStepID string  `json:"definition_step_id"`
	Name             string  `json:"name"`
	Status           string  `json:"status"`
	AssignedTo       *string `json:"assigned_to,omitempty"`
	Decision         *string `json:"decision,omitempty"`
	Comment          *string `json:"comment,omitempty"`
	DueDate          *string `json:"due_date,omitempty"`
	Overdue          bool    `json:"overdue"`
	StartedAt        *string `json:"started_at,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`
	Version          int     `json:"version"`
}

// InstanceViewResponse is an instance together with its steps
type InstanceViewResponse struct {
	Instance InstanceResponse `json:"instance"`
	Steps    []StepResponse   `json:"steps"`
}

// TaskResponse is one active step waiting for the caller
type TaskResponse struct {
	Step     StepResponse     `json:"step"`
	Instance InstanceResponse `json:"instance"`
}

// CommentResponse represents a comment in API responses
type CommentResponse struct {
	ID        string `json:"id"`
	PostedBy  string `json:"posted_by"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toDefinitionResponse(d *domainwf.Definition) DefinitionResponse {
	return DefinitionResponse{
		ID:          d.ID.String(),
		Name:        d.Name,
		Description: d.Description,
		Status:      d.Status.String(),
		Version:     d.Version,
		Body:        d.Body,
		CreatedBy:   d.CreatedBy.String(),
		CreatedAt:   formatTime(d.CreatedAt),
		UpdatedAt:   formatTime(d.UpdatedAt),
	}
}

func toInstanceResponse(i *domainwf.Instance) InstanceResponse {
	rec := i.Record()
	return InstanceResponse{
		ID:                rec.ID.String(),
		DisplayID:         i.DisplayID(),
		DisplayNumber:     rec.DisplayNumber,
		DefinitionID:      rec.DefinitionID.String(),
		DefinitionVersion: rec.DefinitionVersion,
		Title:             rec.Title,
		FormData:          rec.FormData,
		Status:            rec.Status,
		CurrentStepID:     rec.CurrentStepID,
		InitiatedBy:       rec.InitiatedBy.String(),
		Version:           rec.Version,
		SubmittedAt:       formatTimePtr(rec.SubmittedAt),
		CompletedAt:       formatTimePtr(rec.CompletedAt),
		CancelledFrom:     rec.CancelledFrom,
		CancelReason:      rec.CancelReason,
		CreatedAt:         formatTime(rec.CreatedAt),
		UpdatedAt:         formatTime(rec.UpdatedAt),
	}
}

func toStepResponse(s *domainwf.Step, now time.Time) StepResponse {
	rec := s.Record()
	resp := StepResponse{
		ID:               rec.ID.String(),
		DisplayID:        s.DisplayID(),
		DisplayNumber:    rec.DisplayNumber,
		Position:         rec.Position,
		DefinitionStepID: rec.DefinitionStepID,
		Name:             rec.Name,
		Status:           rec.Status,
		Decision:         rec.Decision,
		Comment:          rec.Comment,
		DueDate:          formatTimePtr(rec.DueDate),
		Overdue:          s.IsOverdue(now),
		StartedAt:        formatTimePtr(rec.StartedAt),
		CompletedAt:      formatTimePtr(rec.CompletedAt),
		Version:          rec.Version,
	}
	if rec.AssignedTo != nil {
		assignee := rec.AssignedTo.String()
		resp.AssignedTo = &assignee
	}
	return resp
}

func toViewResponse(v *workflow.InstanceView, now time.Time) InstanceViewResponse {
	steps := make([]StepResponse, 0, len(v.Steps))
	for _, s := range v.Steps {
		steps = append(steps, toStepResponse(s, now))
	}
	return InstanceViewResponse{
		Instance: toInstanceResponse(v.Instance),
		Steps:    steps,
	}
}

func toCommentResponse(c *domainwf.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID.String(),
		PostedBy:  c.PostedBy.String(),
		Body:      c.Body,
		CreatedAt: formatTime(c.CreatedAt),
	}
}

// statusFor maps an engine error to its HTTP status
func statusFor(err error) int {
	switch domainwf.ErrorKind(err) {
	case "validation":
		return http.StatusBadRequest
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Unexpected errors are logged and
// their text is not echoed to the client.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	resp := Response{Success: false, Error: err.Error()}

	var invalid *domainwf.DefinitionInvalidError
	if errors.As(err, &invalid) {
		resp.Issues = invalid.Issues
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "operation", op, "path", c.Request.URL.Path, "error", err)
		resp.Error = "internal server error"
	}
	c.JSON(status, resp)
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}
