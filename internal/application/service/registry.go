package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

const maxObservationLen = 20000

var _ output.ToolRegistry = (*ToolRegistryImpl)(nil)

// ToolRegistryImpl is fixed at construction; nothing can be registered later.
type ToolRegistryImpl struct {
	tools   map[entity.ToolName]output.ToolPort
	schemas map[entity.ToolName]*jsonschema.Schema
}

func NewToolRegistry(tools ...output.ToolPort) (*ToolRegistryImpl, error) {
	r := &ToolRegistryImpl{
		tools:   make(map[entity.ToolName]output.ToolPort, len(tools)),
		schemas: make(map[entity.ToolName]*jsonschema.Schema, len(tools)),
	}
	for _, tool := range tools {
		name := tool.Name()
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("tool %q registered twice", name)
		}
		schema, err := compileToolSchema(name, tool.Parameters())
		if err != nil {
			return nil, err
		}
		r.tools[name] = tool
		r.schemas[name] = schema
	}
	return r, nil
}

func (r *ToolRegistryImpl) Get(name entity.ToolName) (output.ToolPort, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns tools sorted by name.
func (r *ToolRegistryImpl) All() []output.ToolPort {
	result := make([]output.ToolPort, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

func (r *ToolRegistryImpl) Definitions() []entity.ToolDefinition {
	all := r.All()
	result := make([]entity.ToolDefinition, 0, len(all))
	for _, tool := range all {
		result = append(result, entity.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return result
}

func (r *ToolRegistryImpl) Names() []string {
	all := r.All()
	names := make([]string, 0, len(all))
	for _, tool := range all {
		names = append(names, tool.Name().String())
	}
	return names
}

func compileToolSchema(name entity.ToolName, params map[string]interface{}) (*jsonschema.Schema, error) {
	if len(params) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("tool %q: marshal parameters: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://step-agent.local/tools/%s.schema.json", name)
	if err := c.AddResource(schemaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("tool %q: load schema: %w", name, err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("tool %q: compile schema: %w", name, err)
	}
	return compiled, nil
}

type ToolStatus string

const (
	ToolStatusOK           ToolStatus = "ok"
	ToolStatusUnknown      ToolStatus = "unknown"
	ToolStatusInvalidInput ToolStatus = "invalid_input"
	ToolStatusFailed       ToolStatus = "failed"
)

// Observation is what a tool invocation reports back to the generator.
type Observation struct {
	Text   string
	Status ToolStatus
}

// Dispatcher resolves and runs tools. Invoke never returns an error: every
// failure below it becomes observation text.
type Dispatcher struct {
	registry *ToolRegistryImpl
	logger   output.LoggerPort
}

func NewDispatcher(registry *ToolRegistryImpl, logger output.LoggerPort) *Dispatcher {
	if registry == nil {
		registry, _ = NewToolRegistry()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

func (d *Dispatcher) Registry() *ToolRegistryImpl {
	return d.registry
}

func (d *Dispatcher) Invoke(ctx context.Context, name entity.ToolName, input map[string]any) (obs Observation) {
	tool, ok := d.registry.Get(name)
	if !ok {
		d.logger.Warn("Unknown tool called", "name", name)
		available := strings.Join(d.registry.Names(), ", ")
		if available == "" {
			available = "none"
		}
		return Observation{
			Text:   fmt.Sprintf("Error: tool '%s' is not available. Available tools: %s", name, available),
			Status: ToolStatusUnknown,
		}
	}

	if input == nil {
		input = map[string]any{}
	}
	if schema := d.registry.schemas[name]; schema != nil {
		if err := schema.Validate(input); err != nil {
			d.logger.Warn("Tool input rejected", "name", name, "error", err)
			return Observation{
				Text:   fmt.Sprintf("Error: invalid input for tool '%s': %s", name, describeValidationError(err)),
				Status: ToolStatusInvalidInput,
			}
		}
	}

	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("Tool panicked", "name", name, "panic", p)
			obs = Observation{Text: fmt.Sprintf("Error: tool '%s' crashed: %v", name, p), Status: ToolStatusFailed}
		}
	}()

	d.logger.Info("Executing tool", "name", name, "input", input)

	result, err := tool.Execute(ctx, input)
	if err != nil {
		d.logger.Error("Tool execution failed", "name", name, "error", err)
		return Observation{Text: "Error: " + err.Error(), Status: ToolStatusFailed}
	}

	if len(result) > maxObservationLen {
		result = result[:maxObservationLen] + "\n... (truncated)"
	}

	d.logger.Debug("Tool completed", "name", name, "resultLen", len(result))
	return Observation{Text: result, Status: ToolStatusOK}
}
