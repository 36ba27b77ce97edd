package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
)

var _ output.ReviewerPort = (*Reviewer)(nil)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 200

	systemPrompt = `You review one intermediate reasoning step produced by another model.
Reply with one or two short sentences: say whether the step is sound and, if not, what is wrong.
Do not solve the overall problem. Plain text only.`
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// MaxRetries overrides the SDK default when non-negative.
	MaxRetries int
}

type Reviewer struct {
	client anthropic.Client
	model  string
	logger output.LoggerPort
}

func New(cfg Config, logger output.LoggerPort) (*Reviewer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic reviewer: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Reviewer{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

func (r *Reviewer) Review(ctx context.Context, thought string) (string, error) {
	msg, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: defaultMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(thought)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic review: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	review := strings.TrimSpace(text.String())
	if review == "" {
		return "", errors.New("anthropic review: empty response")
	}

	r.logger.Debug("Thought reviewed", "model", r.model, "input_tokens", msg.Usage.InputTokens, "output_tokens", msg.Usage.OutputTokens)
	return "(external) " + review, nil
}
