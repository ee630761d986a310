package workflow

import (
	"bytes"
	"encoding/json"
)

// Step types in a definition graph
const (
	StepTypeStart    = "start"
	StepTypeApproval = "approval"
	StepTypeEnd      = "end"
)

// Transition triggers in a definition graph
const (
	TransitionApprove        = "approve"
	TransitionReject         = "reject"
	TransitionRequestChanges = "request_changes"
)

// MaxDueInHours caps a step deadline at ten years
const MaxDueInHours = 24 * 365 * 10

// Form field types
var formFieldTypes = map[string]bool{
	"text":     true,
	"textarea": true,
	"number":   true,
	"select":   true,
	"date":     true,
	"checkbox": true,
}

// StepDef is one node of a definition graph
type StepDef struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Fields     []string `json:"fields,omitempty"`
	DueInHours int      `json:"due_in_hours,omitempty"`
}

// TransitionDef is one edge of a definition graph
type TransitionDef struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Trigger string `json:"trigger,omitempty"`
}

// FormField describes one input of the request form
type FormField struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// FormSchema is the dynamic form attached to a definition
type FormSchema struct {
	Fields []FormField `json:"fields"`
}

// Graph is the parsed body of a definition
type Graph struct {
	Form        FormSchema      `json:"form"`
	Steps       []StepDef       `json:"steps"`
	Transitions []TransitionDef `json:"transitions"`
}

// ApprovalStepDef is an approval node in execution order
type ApprovalStepDef struct {
	ID         string
	Name       string
	DueInHours int
}

// ParseGraph decodes a definition body
func ParseGraph(body []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(body, &g); err != nil {
		return nil, Validationf("definition body is not a valid graph: %v", err)
	}
	return &g, nil
}

// ExtractApprovalSteps returns the approval steps in steps-array order, which
// is the order they are executed in
func ExtractApprovalSteps(body []byte) ([]ApprovalStepDef, error) {
	g, err := ParseGraph(body)
	if err != nil {
		return nil, err
	}
	var out []ApprovalStepDef
	for _, s := range g.Steps {
		if s.Type == StepTypeApproval {
			out = append(out, ApprovalStepDef{ID: s.ID, Name: s.Name, DueInHours: s.DueInHours})
		}
	}
	if len(out) == 0 {
		return nil, Validationf("definition has no approval steps")
	}
	return out, nil
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
