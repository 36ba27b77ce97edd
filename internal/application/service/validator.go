package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

type Violation string

const (
	ViolationNone        Violation = ""
	ViolationUnknownKind Violation = "unknown_kind"
	ViolationSchema      Violation = "schema"
)

// Verdict is the outcome of validating one decoded response. Failures are
// values so the engine can branch on them.
type Verdict struct {
	OK        bool
	Step      entity.Step
	Violation Violation
	Reason    string
}

// StepValidator checks decoded responses against a protocol's step contract.
type StepValidator struct {
	protocol entity.Protocol
	schema   *jsonschema.Schema
}

func NewStepValidator(protocol entity.Protocol) (*StepValidator, error) {
	data, err := json.Marshal(contractSchema(protocol))
	if err != nil {
		return nil, fmt.Errorf("marshal step schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://step-agent.local/protocols/%s/step.schema.json", protocol.Name)
	if err := c.AddResource(schemaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("load step schema: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile step schema: %w", err)
	}

	return &StepValidator{protocol: protocol, schema: compiled}, nil
}

func (v *StepValidator) Validate(obj map[string]any) Verdict {
	raw, ok := obj["step"].(string)
	if !ok {
		return Verdict{Violation: ViolationSchema, Reason: `missing string field "step"`}
	}
	kind := entity.StepKind(strings.ToLower(strings.TrimSpace(raw)))
	if !v.protocol.Allows(kind) {
		return Verdict{
			Violation: ViolationUnknownKind,
			Reason:    fmt.Sprintf("step %q is not one of: %s", raw, strings.Join(v.protocol.KindNames(), ", ")),
		}
	}

	normalized := make(map[string]any, len(obj))
	for k, val := range obj {
		normalized[k] = val
	}
	normalized["step"] = string(kind)

	if err := v.schema.Validate(normalized); err != nil {
		return Verdict{Violation: ViolationSchema, Reason: describeValidationError(err)}
	}

	step := entity.Step{Kind: kind}
	step.Content, _ = normalized["content"].(string)
	if kind == v.protocol.ActionKind {
		name, _ := normalized["function"].(string)
		step.ToolName = entity.ToolName(strings.TrimSpace(name))
		step.ToolInput, _ = normalized["input"].(map[string]any)
		if step.ToolInput == nil {
			step.ToolInput = map[string]any{}
		}
	}

	return Verdict{OK: true, Step: step}
}

// HintSchema is the simplified contract sent to generators as a structured
// output hint. Conditional keywords are left out since few providers accept them.
func HintSchema(protocol entity.Protocol) map[string]any {
	properties := map[string]any{
		"step":    map[string]any{"type": "string", "enum": protocol.KindNames()},
		"content": map[string]any{"type": "string"},
	}
	required := []string{"step", "content"}
	if protocol.ActionKind != "" {
		properties["function"] = map[string]any{"type": "string"}
		properties["input"] = map[string]any{"type": "object"}
		required = []string{"step"}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func contractSchema(protocol entity.Protocol) map[string]any {
	nonEmptyContent := map[string]any{
		"required":   []string{"content"},
		"properties": map[string]any{"content": map[string]any{"pattern": `\S`}},
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"step":    map[string]any{"type": "string", "enum": protocol.KindNames()},
			"content": map[string]any{"type": "string"},
		},
		"required":             []string{"step"},
		"additionalProperties": false,
	}

	if protocol.ActionKind == "" {
		schema["allOf"] = []any{nonEmptyContent}
		return schema
	}

	props := schema["properties"].(map[string]any)
	props["function"] = map[string]any{"type": "string", "pattern": `\S`}
	props["input"] = map[string]any{"type": "object"}

	schema["if"] = map[string]any{
		"properties": map[string]any{"step": map[string]any{"const": string(protocol.ActionKind)}},
	}
	schema["then"] = map[string]any{"required": []string{"function"}}
	schema["else"] = map[string]any{
		"allOf": []any{
			nonEmptyContent,
			map[string]any{"not": map[string]any{"anyOf": []any{
				map[string]any{"required": []string{"function"}},
				map[string]any{"required": []string{"input"}},
			}}},
		},
	}
	return schema
}

func describeValidationError(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}

	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
