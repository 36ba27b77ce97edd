package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/04shubham7/genai-cwc-shubham/internal/adapter/tool"
	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/input"
	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
	"github.com/04shubham7/genai-cwc-shubham/internal/application/service"
	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/config"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/llm/langchain"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/llm/openaicompat"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/logger"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/metrics"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/prompts"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/reviewer/anthropic"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/reviewer/static"
	"github.com/04shubham7/genai-cwc-shubham/internal/usecase/protocol"
)

var ErrMissingCredentials = errors.New("missing LLM credentials: set LLM_API_KEY")

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	ProtocolReasoning = "reasoning"
	ProtocolTools     = "tools"

	DefaultModel = "gemini-2.0-flash"
)

type Container struct {
	Logger    output.LoggerPort
	Generator output.GeneratorPort
	Reviewer  output.ReviewerPort
	Tools     *service.ToolRegistryImpl
	Runner    input.StepRunner

	// MetricsHandler is nil when metrics are disabled.
	MetricsHandler http.Handler
}

type Config struct {
	Provider        string
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float32
	MaxOutputTokens int

	Protocol     string
	ProtocolFile string
	MaxSteps     int
	CallTimeout  time.Duration

	Workdir    string
	WeatherURL string

	AnthropicAPIKey string
	ReviewerModel   string

	LogLevel string
	LogDir   string
	LogName  string
	Metrics  bool
}

// ConfigFromEnv reads the agent configuration. LLM_API_KEY wins over the
// provider-specific keys; the base URL follows whichever key was used.
func ConfigFromEnv(env output.ConfigPort) Config {
	cfg := Config{
		Provider:        strings.ToLower(env.GetWithDefault("LLM_PROVIDER", ProviderOpenAI)),
		Model:           env.GetWithDefault("LLM_MODEL", DefaultModel),
		BaseURL:         env.Get("LLM_BASE_URL"),
		Temperature:     float32(env.GetFloat("LLM_TEMPERATURE", 0.2)),
		MaxOutputTokens: env.GetInt("LLM_MAX_OUTPUT_TOKENS", 256),
		Protocol:        strings.ToLower(env.GetWithDefault("AGENT_PROTOCOL", ProtocolReasoning)),
		ProtocolFile:    env.Get("AGENT_PROTOCOL_FILE"),
		MaxSteps:        env.GetInt("AGENT_MAX_STEPS", protocol.DefaultMaxSteps),
		CallTimeout:     env.GetDuration("AGENT_CALL_TIMEOUT", protocol.DefaultCallTimeout),
		Workdir:         env.GetWithDefault("AGENT_WORKDIR", "."),
		WeatherURL:      env.GetWithDefault("WEATHER_URL", tool.DefaultWeatherURL),
		AnthropicAPIKey: env.Get("ANTHROPIC_API_KEY"),
		ReviewerModel:   env.Get("REVIEWER_MODEL"),
		LogLevel:        env.GetWithDefault("LOG_LEVEL", "info"),
		LogDir:          env.Get("LOG_DIR"),
	}

	switch {
	case env.Get("LLM_API_KEY") != "":
		cfg.APIKey = env.Get("LLM_API_KEY")
		if cfg.BaseURL == "" {
			cfg.BaseURL = openaicompat.GeminiBaseURL
		}
	case env.Get("OPENROUTER_API_KEY") != "":
		cfg.APIKey = env.Get("OPENROUTER_API_KEY")
		if cfg.BaseURL == "" {
			cfg.BaseURL = openaicompat.OpenRouterBaseURL
		}
	case env.Get("GOOGLE_API_KEY") != "":
		cfg.APIKey = env.Get("GOOGLE_API_KEY")
		if cfg.BaseURL == "" {
			cfg.BaseURL = openaicompat.GeminiBaseURL
		}
	}

	return cfg
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingCredentials
	}
	switch c.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown LLM provider %q: use %s or %s", c.Provider, ProviderOpenAI, ProviderGemini)
	}
	if c.ProtocolFile == "" {
		switch c.Protocol {
		case ProtocolReasoning, ProtocolTools:
		default:
			return fmt.Errorf("unknown protocol %q: use %s or %s", c.Protocol, ProtocolReasoning, ProtocolTools)
		}
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max steps must not be negative, got %d", c.MaxSteps)
	}
	return nil
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.NewLoggerAdapter(logger.Config{
		Level: cfg.LogLevel,
		Dir:   cfg.LogDir,
		Name:  firstNonEmpty(cfg.LogName, "agent"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c, err := build(ctx, cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}
	return c, nil
}

func build(ctx context.Context, cfg Config, log output.LoggerPort) (*Container, error) {
	proto, err := selectProtocol(cfg)
	if err != nil {
		return nil, err
	}

	var (
		tools      *service.ToolRegistryImpl
		dispatcher *service.Dispatcher
	)
	// Instructions of tool-calling protocols are templates over the
	// registered tools.
	if proto.ActionKind != "" {
		tools, err = service.NewToolRegistry(
			tool.NewWeatherTool(cfg.WeatherURL, log),
			tool.NewCommandTool(cfg.Workdir, tool.DefaultCommandTimeout, log),
			tool.NewWriteFileTool(cfg.Workdir, log),
			tool.NewFetchPageTool(log),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to register tools: %w", err)
		}
		dispatcher = service.NewDispatcher(tools, log)

		proto.Instruction, err = prompts.GenerateToolsPrompt(proto.Instruction, tools)
		if err != nil {
			return nil, fmt.Errorf("failed to render tools prompt: %w", err)
		}
	}

	generator, err := newGenerator(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var reviewer output.ReviewerPort
	if proto.ThinkKind != "" {
		reviewer, err = newReviewer(cfg, log)
		if err != nil {
			return nil, err
		}
	}

	var (
		metricsPort    output.MetricsPort = metrics.NewNop()
		metricsHandler http.Handler
	)
	if cfg.Metrics {
		prom := metrics.NewPrometheus()
		metricsPort = prom
		metricsHandler = prom.Handler()
	}

	engine, err := protocol.New(protocol.Config{
		Protocol:        proto,
		Model:           cfg.Model,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		MaxSteps:        cfg.MaxSteps,
		CallTimeout:     cfg.CallTimeout,
	}, generator, reviewer, dispatcher, metricsPort, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	log.Info("Container ready",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"protocol", proto.Name,
		"max_steps", cfg.MaxSteps,
		"metrics", cfg.Metrics,
	)

	return &Container{
		Logger:         log,
		Generator:      generator,
		Reviewer:       reviewer,
		Tools:          tools,
		Runner:         engine,
		MetricsHandler: metricsHandler,
	}, nil
}

func (c *Container) Close() {
	if c.Logger != nil {
		c.Logger.Close()
	}
}

func selectProtocol(cfg Config) (entity.Protocol, error) {
	if cfg.ProtocolFile != "" {
		p, err := config.LoadProtocol(cfg.ProtocolFile)
		if err != nil {
			return entity.Protocol{}, fmt.Errorf("failed to load protocol: %w", err)
		}
		return p, nil
	}
	if cfg.Protocol == ProtocolTools {
		return entity.ToolCallingProtocol(prompts.ToolsPrompt), nil
	}
	return entity.ReasoningProtocol(prompts.ReasoningPrompt), nil
}

func newGenerator(ctx context.Context, cfg Config, log output.LoggerPort) (output.GeneratorPort, error) {
	if cfg.Provider == ProviderGemini {
		model, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return langchain.NewAdapter(model, cfg.Model, log), nil
	}

	return openaicompat.NewAdapter(openaicompat.Config{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Logger:  log,
	}), nil
}

func newReviewer(cfg Config, log output.LoggerPort) (output.ReviewerPort, error) {
	if cfg.AnthropicAPIKey == "" {
		return static.New(), nil
	}
	r, err := anthropic.New(anthropic.Config{
		APIKey:     cfg.AnthropicAPIKey,
		Model:      cfg.ReviewerModel,
		MaxRetries: -1,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create reviewer: %w", err)
	}
	return r, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
