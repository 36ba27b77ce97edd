package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

var _ output.GeneratorPort = (*Adapter)(nil)

// Adapter runs generations through any langchaingo model. The schema hint is
// not forwarded; JSON mode is requested instead.
type Adapter struct {
	model  llms.Model
	name   string
	logger output.LoggerPort
}

func NewAdapter(model llms.Model, name string, logger output.LoggerPort) *Adapter {
	return &Adapter{model: model, name: name, logger: logger}
}

func (a *Adapter) Generate(ctx context.Context, req output.GenerateRequest) (string, error) {
	opts := []llms.CallOption{llms.WithJSONMode()}
	if name := firstNonEmpty(req.Model, a.name); name != "" {
		opts = append(opts, llms.WithModel(name))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(float64(req.Temperature)))
	}
	if req.MaxOutputTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxOutputTokens))
	}

	resp, err := a.model.GenerateContent(ctx, convertTurns(req.Turns), opts...)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	choice := resp.Choices[0]
	a.logger.Debug("Content generated", "stopReason", choice.StopReason, "length", len(choice.Content))
	return choice.Content, nil
}

func convertTurns(turns []entity.Turn) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(turns))
	for i, turn := range turns {
		role := llms.ChatMessageTypeHuman
		switch {
		case i == 0 && turn.Source == entity.SourceInstruction:
			role = llms.ChatMessageTypeSystem
		case turn.Role == entity.RoleModel:
			role = llms.ChatMessageTypeAI
		}
		result = append(result, llms.TextParts(role, turn.Text))
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
