package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Validation issue codes
const (
	CodeInvalidDefinition         = "invalid_definition"
	CodeMissingSteps              = "missing_steps"
	CodeInvalidStep               = "invalid_step"
	CodeInvalidStepType           = "invalid_step_type"
	CodeDuplicateStepID           = "duplicate_step_id"
	CodeMissingStartStep          = "missing_start_step"
	CodeMultipleStartSteps        = "multiple_start_steps"
	CodeMissingEndStep            = "missing_end_step"
	CodeMultipleEndSteps          = "multiple_end_steps"
	CodeMissingApprovalStep       = "missing_approval_step"
	CodeInvalidTransition         = "invalid_transition"
	CodeInvalidTransitionRef      = "invalid_transition_ref"
	CodeInvalidTransitionTrigger  = "invalid_transition_trigger"
	CodeOrphanedStep              = "orphaned_step"
	CodeCycleDetected             = "cycle_detected"
	CodeMissingApprovalTransition = "missing_approval_transition"
	CodeInvalidFormField          = "invalid_form_field"
	CodeDuplicateStepField        = "duplicate_step_field"
	CodeUnknownFormField          = "unknown_form_field"
)

// ValidationIssue is one structural problem found in a definition graph
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	StepID  string `json:"step_id,omitempty"`
}

// ValidationResult is the outcome of ValidateDefinition
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors"`
}

// Err returns a DefinitionInvalidError when the result is not valid
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &DefinitionInvalidError{Issues: r.Errors}
}

// HasCode reports whether any issue carries code
func (r ValidationResult) HasCode(code string) bool {
	for _, issue := range r.Errors {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// ValidateDefinition checks a definition body and reports every violation it
// finds. Only a missing steps array stops the walk early.
func ValidateDefinition(body []byte) ValidationResult {
	v := &graphValidator{}
	v.run(body)
	return ValidationResult{
		Valid:  len(v.issues) == 0,
		Errors: append([]ValidationIssue{}, v.issues...),
	}
}

type graphValidator struct {
	issues []ValidationIssue

	steps       []StepDef
	stepsByID   map[string]StepDef
	transitions []TransitionDef
	form        FormSchema
}

func (v *graphValidator) addf(code, stepID, format string, args ...interface{}) {
	v.issues = append(v.issues, ValidationIssue{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		StepID:  stepID,
	})
}

func (v *graphValidator) run(body []byte) {
	if !isJSONObject(body) {
		v.addf(CodeInvalidDefinition, "", "definition must be a JSON object")
		return
	}
	var steps []json.RawMessage
	top := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &top); err != nil {
		v.addf(CodeInvalidDefinition, "", "definition is not valid JSON: %v", err)
		return
	}
	stepsRaw, ok := top["steps"]
	if !ok || !isJSONArray(stepsRaw) {
		v.addf(CodeMissingSteps, "", "definition must contain a steps array")
		return
	}
	if err := json.Unmarshal(stepsRaw, &steps); err != nil {
		v.addf(CodeMissingSteps, "", "definition must contain a steps array")
		return
	}

	v.parseSteps(steps)
	v.parseTransitions(top)
	v.parseForm(top)

	v.checkStepCounts()
	adjacency := v.checkTransitions()
	v.checkReachability(adjacency)
	v.checkCycles(adjacency)
	v.checkApprovalTransitions()
	v.checkStepFields()
}

func (v *graphValidator) parseSteps(raw []json.RawMessage) {
	v.stepsByID = make(map[string]StepDef, len(raw))
	for i, elem := range raw {
		var step StepDef
		if err := json.Unmarshal(elem, &step); err != nil || !isJSONObject(elem) {
			v.addf(CodeInvalidStep, "", "step #%d is not a valid step object", i+1)
			continue
		}
		step.ID = strings.TrimSpace(step.ID)
		if step.ID == "" {
			v.addf(CodeInvalidStep, "", "step #%d has no id", i+1)
			continue
		}
		if _, dup := v.stepsByID[step.ID]; dup {
			v.addf(CodeDuplicateStepID, step.ID, "step id %q is used more than once", step.ID)
			continue
		}
		switch step.Type {
		case StepTypeStart, StepTypeApproval, StepTypeEnd:
		default:
			v.addf(CodeInvalidStepType, step.ID, "step %q has unknown type %q", step.ID, step.Type)
		}
		if step.DueInHours < 0 {
			v.addf(CodeInvalidStep, step.ID, "step %q has a negative due_in_hours", step.ID)
		} else if step.DueInHours > MaxDueInHours {
			v.addf(CodeInvalidStep, step.ID, "step %q has due_in_hours above %d", step.ID, MaxDueInHours)
		}
		v.stepsByID[step.ID] = step
		v.steps = append(v.steps, step)
	}
}

func (v *graphValidator) parseTransitions(top map[string]json.RawMessage) {
	raw, ok := top["transitions"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return
	}
	var elems []json.RawMessage
	if !isJSONArray(raw) || json.Unmarshal(raw, &elems) != nil {
		v.addf(CodeInvalidTransition, "", "transitions must be an array")
		return
	}
	for i, elem := range elems {
		var t TransitionDef
		if err := json.Unmarshal(elem, &t); err != nil || !isJSONObject(elem) {
			v.addf(CodeInvalidTransition, "", "transition #%d is not a valid transition object", i+1)
			continue
		}
		v.transitions = append(v.transitions, t)
	}
}

func (v *graphValidator) parseForm(top map[string]json.RawMessage) {
	raw, ok := top["form"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return
	}
	if !isJSONObject(raw) || json.Unmarshal(raw, &v.form) != nil {
		v.addf(CodeInvalidFormField, "", "form must be an object with a fields array")
		v.form = FormSchema{}
		return
	}

	seen := make(map[string]bool, len(v.form.Fields))
	for i, f := range v.form.Fields {
		switch {
		case strings.TrimSpace(f.ID) == "":
			v.addf(CodeInvalidFormField, "", "form field #%d has no id", i+1)
			continue
		case seen[f.ID]:
			v.addf(CodeInvalidFormField, "", "form field id %q is used more than once", f.ID)
			continue
		}
		seen[f.ID] = true
		if strings.TrimSpace(f.Label) == "" {
			v.addf(CodeInvalidFormField, "", "form field %q has no label", f.ID)
		}
		if !formFieldTypes[f.Type] {
			v.addf(CodeInvalidFormField, "", "form field %q has unknown type %q", f.ID, f.Type)
		}
		if f.Type == "select" && len(f.Options) == 0 {
			v.addf(CodeInvalidFormField, "", "select field %q has no options", f.ID)
		}
	}
}

func (v *graphValidator) checkStepCounts() {
	counts := map[string]int{}
	for _, s := range v.steps {
		counts[s.Type]++
	}
	switch n := counts[StepTypeStart]; {
	case n == 0:
		v.addf(CodeMissingStartStep, "", "definition has no start step")
	case n > 1:
		v.addf(CodeMultipleStartSteps, "", "definition has %d start steps, exactly one is required", n)
	}
	switch n := counts[StepTypeEnd]; {
	case n == 0:
		v.addf(CodeMissingEndStep, "", "definition has no end step")
	case n > 1:
		v.addf(CodeMultipleEndSteps, "", "definition has %d end steps, exactly one is required", n)
	}
	if counts[StepTypeApproval] == 0 {
		v.addf(CodeMissingApprovalStep, "", "definition has no approval step")
	}
}

// checkTransitions validates each edge and returns the adjacency of the valid ones
func (v *graphValidator) checkTransitions() map[string][]string {
	adjacency := make(map[string][]string, len(v.steps))
	for i, t := range v.transitions {
		ok := true
		if _, exists := v.stepsByID[t.From]; !exists {
			v.addf(CodeInvalidTransitionRef, t.From, "transition #%d starts at unknown step %q", i+1, t.From)
			ok = false
		}
		if _, exists := v.stepsByID[t.To]; !exists {
			v.addf(CodeInvalidTransitionRef, t.From, "transition #%d points to unknown step %q", i+1, t.To)
			ok = false
		}
		switch t.Trigger {
		case "", TransitionApprove, TransitionReject, TransitionRequestChanges:
		default:
			v.addf(CodeInvalidTransitionTrigger, t.From, "transition #%d has unknown trigger %q", i+1, t.Trigger)
		}
		if ok {
			adjacency[t.From] = append(adjacency[t.From], t.To)
		}
	}
	return adjacency
}

func (v *graphValidator) checkReachability(adjacency map[string][]string) {
	var start string
	starts := 0
	for _, s := range v.steps {
		if s.Type == StepTypeStart {
			start = s.ID
			starts++
		}
	}
	// Orphans are only meaningful relative to a unique start.
	if starts != 1 {
		return
	}

	reached := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[node] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	for _, s := range v.steps {
		if !reached[s.ID] {
			v.addf(CodeOrphanedStep, s.ID, "step %q is not reachable from the start step", s.ID)
		}
	}
}

func (v *graphValidator) checkCycles(adjacency map[string][]string) {
	order := make([]string, 0, len(v.steps))
	for _, s := range v.steps {
		order = append(order, s.ID)
	}
	for _, cycle := range FindCycles(order, adjacency) {
		path := append(append([]string{}, cycle...), cycle[0])
		v.addf(CodeCycleDetected, cycle[0], "cycle detected: %s", strings.Join(path, " -> "))
	}
}

func (v *graphValidator) checkApprovalTransitions() {
	triggers := make(map[string]map[string]bool)
	for _, t := range v.transitions {
		if _, ok := v.stepsByID[t.To]; !ok {
			continue
		}
		if triggers[t.From] == nil {
			triggers[t.From] = map[string]bool{}
		}
		triggers[t.From][t.Trigger] = true
	}

	for _, s := range v.steps {
		if s.Type != StepTypeApproval {
			continue
		}
		out := triggers[s.ID]
		if !out[TransitionApprove] {
			v.addf(CodeMissingApprovalTransition, s.ID, "approval step %q has no approve transition", s.ID)
		}
		if !out[TransitionReject] && !out[TransitionRequestChanges] {
			v.addf(CodeMissingApprovalTransition, s.ID, "approval step %q has no reject or request_changes transition", s.ID)
		}
	}
}

func (v *graphValidator) checkStepFields() {
	known := make(map[string]bool, len(v.form.Fields))
	for _, f := range v.form.Fields {
		known[f.ID] = true
	}
	for _, s := range v.steps {
		seen := make(map[string]bool, len(s.Fields))
		for _, field := range s.Fields {
			if seen[field] {
				v.addf(CodeDuplicateStepField, s.ID, "step %q references field %q more than once", s.ID, field)
				continue
			}
			seen[field] = true
			if !known[field] {
				v.addf(CodeUnknownFormField, s.ID, "step %q references unknown form field %q", s.ID, field)
			}
		}
	}
}

func isJSONArray(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
