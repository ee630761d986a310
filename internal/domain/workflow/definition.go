package workflow

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxDefinitionNameLength        = 100
	maxDefinitionDescriptionLength = 1000
)

// DefinitionStatus is the lifecycle state of a definition
type DefinitionStatus string

const (
	DefinitionDraft     DefinitionStatus = "draft"
	DefinitionPublished DefinitionStatus = "published"
	DefinitionArchived  DefinitionStatus = "archived"
)

var validDefinitionStatuses = map[DefinitionStatus]bool{
	DefinitionDraft:     true,
	DefinitionPublished: true,
	DefinitionArchived:  true,
}

func (s DefinitionStatus) String() string { return string(s) }

// IsValid returns true if the status is known
func (s DefinitionStatus) IsValid() bool { return validDefinitionStatuses[s] }

// DefinitionTrigger names a definition transition
type DefinitionTrigger string

const (
	DefinitionTriggerEdit    DefinitionTrigger = "edit"
	DefinitionTriggerPublish DefinitionTrigger = "publish"
	DefinitionTriggerArchive DefinitionTrigger = "archive"
)

// AllDefinitionTriggers lists every definition trigger
var AllDefinitionTriggers = []DefinitionTrigger{
	DefinitionTriggerEdit, DefinitionTriggerPublish, DefinitionTriggerArchive,
}

var definitionTransitions = buildDefinitionTransitions()

func buildDefinitionTransitions() *TransitionTable[DefinitionStatus, DefinitionTrigger] {
	b := NewBuilder[DefinitionStatus, DefinitionTrigger]()

	b.Configure(DefinitionDraft).
		Permit(DefinitionTriggerEdit, DefinitionDraft).
		Permit(DefinitionTriggerPublish, DefinitionPublished)

	b.Configure(DefinitionPublished).
		Permit(DefinitionTriggerArchive, DefinitionArchived)

	return b.Build()
}

// DefinitionTransitions exposes the definition legality table
func DefinitionTransitions() *TransitionTable[DefinitionStatus, DefinitionTrigger] {
	return definitionTransitions
}

// Definition is a tenant's reusable approval template
type Definition struct {
	ID          DefinitionID
	TenantID    TenantID
	Name        string
	Description string
	Status      DefinitionStatus
	Version     int
	Body        json.RawMessage
	CreatedBy   UserID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDefinitionParams holds the inputs for creating a definition
type NewDefinitionParams struct {
	ID          DefinitionID
	TenantID    TenantID
	Name        string
	Description string
	Body        json.RawMessage
	CreatedBy   UserID
	Now         time.Time
}

// NewDefinition creates a Draft definition at version 1. The body only has to
// be a JSON object here; the graph is validated on publish.
func NewDefinition(p NewDefinitionParams) (*Definition, error) {
	name, description, err := normalizeDefinitionText(p.Name, p.Description)
	if err != nil {
		return nil, err
	}
	if !isJSONObject(p.Body) || !json.Valid(p.Body) {
		return nil, Validationf("definition body must be a JSON object")
	}

	return &Definition{
		ID:          p.ID,
		TenantID:    p.TenantID,
		Name:        name,
		Description: description,
		Status:      DefinitionDraft,
		Version:     1,
		Body:        p.Body,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.Now,
		UpdatedAt:   p.Now,
	}, nil
}

// Updated replaces name, description and body. Draft only.
func (d *Definition) Updated(name, description string, body json.RawMessage, now time.Time) (*Definition, error) {
	if err := d.fire(DefinitionTriggerEdit); err != nil {
		return nil, err
	}
	name, description, err := normalizeDefinitionText(name, description)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		body = d.Body
	}
	if !isJSONObject(body) || !json.Valid(body) {
		return nil, Validationf("definition body must be a JSON object")
	}

	next := d.with(DefinitionDraft, now)
	next.Name = name
	next.Description = description
	next.Body = body
	return next, nil
}

// Published freezes a valid Draft. An invalid graph yields a
// DefinitionInvalidError carrying every issue.
func (d *Definition) Published(now time.Time) (*Definition, error) {
	if err := d.fire(DefinitionTriggerPublish); err != nil {
		return nil, err
	}
	if err := ValidateDefinition(d.Body).Err(); err != nil {
		return nil, err
	}
	return d.with(DefinitionPublished, now), nil
}

// Archived retires a Published definition
func (d *Definition) Archived(now time.Time) (*Definition, error) {
	if err := d.fire(DefinitionTriggerArchive); err != nil {
		return nil, err
	}
	return d.with(DefinitionArchived, now), nil
}

// ApprovalSteps returns the approval steps in execution order
func (d *Definition) ApprovalSteps() ([]ApprovalStepDef, error) {
	return ExtractApprovalSteps(d.Body)
}

// ApprovalStep looks up one approval step by its definition step id
func (d *Definition) ApprovalStep(id string) (ApprovalStepDef, bool) {
	steps, err := d.ApprovalSteps()
	if err != nil {
		return ApprovalStepDef{}, false
	}
	for _, s := range steps {
		if s.ID == id {
			return s, true
		}
	}
	return ApprovalStepDef{}, false
}

func (d *Definition) fire(trigger DefinitionTrigger) error {
	_, err := definitionTransitions.Fire(d.Status, trigger)
	return err
}

func (d *Definition) with(status DefinitionStatus, now time.Time) *Definition {
	next := *d
	next.Status = status
	next.Version = d.Version + 1
	next.UpdatedAt = now
	return &next
}

func normalizeDefinitionText(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", Validationf("definition name is required")
	}
	if utf8.RuneCountInString(name) > maxDefinitionNameLength {
		return "", "", Validationf("definition name must be at most %d characters", maxDefinitionNameLength)
	}
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > maxDefinitionDescriptionLength {
		return "", "", Validationf("definition description must be at most %d characters", maxDefinitionDescriptionLength)
	}
	return name, description, nil
}
