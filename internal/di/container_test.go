package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/env"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/llm/openaicompat"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/reviewer/static"
)

func clearLLMEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_API_KEY", "OPENROUTER_API_KEY", "GOOGLE_API_KEY", "LLM_MODEL",
		"LLM_BASE_URL", "AGENT_PROTOCOL", "AGENT_PROTOCOL_FILE", "AGENT_MAX_STEPS",
		"AGENT_CALL_TIMEOUT", "ANTHROPIC_API_KEY", "LLM_TEMPERATURE", "LLM_MAX_OUTPUT_TOKENS",
	} {
		t.Setenv(key, "")
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Provider:        ProviderOpenAI,
		APIKey:          "test-key",
		Model:           DefaultModel,
		BaseURL:         "http://127.0.0.1:1",
		Temperature:     0.2,
		MaxOutputTokens: 256,
		Protocol:        ProtocolReasoning,
		MaxSteps:        5,
		CallTimeout:     time.Second,
		Workdir:         t.TempDir(),
		WeatherURL:      "http://127.0.0.1:1",
		LogLevel:        "error",
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg := ConfigFromEnv(env.NewEnvService(t.TempDir()))

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "g-key", cfg.APIKey)
	assert.Equal(t, openaicompat.GeminiBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-6)
	assert.Equal(t, 256, cfg.MaxOutputTokens)
	assert.Equal(t, ProtocolReasoning, cfg.Protocol)
	assert.Equal(t, 12, cfg.MaxSteps)
	assert.Equal(t, 60*time.Second, cfg.CallTimeout)
}

func TestConfigFromEnv_KeyPrecedence(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg := ConfigFromEnv(env.NewEnvService(t.TempDir()))
	assert.Equal(t, "or-key", cfg.APIKey)
	assert.Equal(t, openaicompat.OpenRouterBaseURL, cfg.BaseURL)

	t.Setenv("LLM_API_KEY", "main-key")
	t.Setenv("LLM_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("AGENT_PROTOCOL", "Tools")

	cfg = ConfigFromEnv(env.NewEnvService(t.TempDir()))
	assert.Equal(t, "main-key", cfg.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", cfg.BaseURL)
	assert.Equal(t, ProtocolTools, cfg.Protocol)
}

func TestConfig_Validate(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	noKey := cfg
	noKey.APIKey = " "
	assert.ErrorIs(t, noKey.Validate(), ErrMissingCredentials)

	badProvider := cfg
	badProvider.Provider = "mystery"
	assert.ErrorContains(t, badProvider.Validate(), "unknown LLM provider")

	badProtocol := cfg
	badProtocol.Protocol = "chatty"
	assert.ErrorContains(t, badProtocol.Validate(), "unknown protocol")

	badProtocol.ProtocolFile = "custom.yaml"
	assert.NoError(t, badProtocol.Validate())
}

func TestNewContainer_Reasoning(t *testing.T) {
	c, err := NewContainer(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "reasoning", c.Runner.Protocol().Name)
	assert.IsType(t, &static.Reviewer{}, c.Reviewer)
	assert.Nil(t, c.Tools)
	assert.Nil(t, c.MetricsHandler)
}

func TestNewContainer_ToolsRendersInstruction(t *testing.T) {
	cfg := testConfig(t)
	cfg.Protocol = ProtocolTools
	cfg.Metrics = true

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	p := c.Runner.Protocol()
	assert.Equal(t, "tools", p.Name)
	assert.Equal(t, []string{"fetch_page", "get_weather", "run_command", "write_to_file"}, c.Tools.Names())
	assert.Contains(t, p.Instruction, `- "get_weather":`)
	assert.NotContains(t, p.Instruction, "{{")
	assert.Nil(t, c.Reviewer)
	assert.NotNil(t, c.MetricsHandler)
}

func TestNewContainer_ProtocolFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: triage
kinds: [inspect, verdict]
terminal: [verdict]
instruction: Reply with one JSON step.
`), 0o644))

	cfg := testConfig(t)
	cfg.ProtocolFile = path

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	p := c.Runner.Protocol()
	assert.Equal(t, "triage", p.Name)
	assert.Equal(t, []entity.StepKind{"inspect", "verdict"}, p.Kinds)
}

func TestNewContainer_MissingCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIKey = ""

	_, err := NewContainer(context.Background(), cfg)

	assert.ErrorIs(t, err, ErrMissingCredentials)
}
