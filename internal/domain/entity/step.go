package entity

import (
	"encoding/json"
	"strings"
)

type StepKind string

const (
	StepAnalyse  StepKind = "analyse"
	StepThink    StepKind = "think"
	StepOutput   StepKind = "output"
	StepValidate StepKind = "validate"
	StepResult   StepKind = "result"

	StepPlan    StepKind = "plan"
	StepAction  StepKind = "action"
	StepObserve StepKind = "observe"
)

func (k StepKind) String() string {
	return string(k)
}

// Step is one accepted unit of protocol output. The JSON form is both the
// generator envelope and the record streamed to consumers.
type Step struct {
	Kind      StepKind       `json:"step"`
	Content   string         `json:"content"`
	ToolName  ToolName       `json:"function,omitempty"`
	ToolInput map[string]any `json:"input,omitempty"`
}

// Fingerprint is the text compared when detecting repeated steps. Action
// steps usually carry no content, so the call itself stands in for it.
func (s Step) Fingerprint() string {
	content := strings.TrimSpace(s.Content)
	if content != "" || s.ToolName == "" {
		return content
	}
	input, err := json.Marshal(s.ToolInput)
	if err != nil {
		return s.ToolName.String()
	}
	return s.ToolName.String() + " " + string(input)
}

type Outcome string

const (
	OutcomeResult               Outcome = "result"
	OutcomeFallback             Outcome = "fallback"
	OutcomeBudgetExhausted      Outcome = "budget_exhausted"
	OutcomeGeneratorUnavailable Outcome = "generator_unavailable"
	OutcomeAbandoned            Outcome = "abandoned"
)

func (o Outcome) String() string {
	return string(o)
}

type RunResult struct {
	RunID          string  `json:"run_id"`
	Steps          []Step  `json:"steps"`
	Result         *Step   `json:"result"`
	Outcome        Outcome `json:"outcome"`
	GeneratorCalls int     `json:"generator_calls"`
}
