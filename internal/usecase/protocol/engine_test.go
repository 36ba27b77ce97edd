package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
	"github.com/04shubham7/genai-cwc-shubham/internal/application/service"
	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
	"github.com/04shubham7/genai-cwc-shubham/internal/infrastructure/logger"
)

type scriptedGenerator struct {
	responses []string
	requests  []output.GenerateRequest
}

// Generate replays responses in order and repeats the last one once the
// script runs out.
func (g *scriptedGenerator) Generate(_ context.Context, req output.GenerateRequest) (string, error) {
	g.requests = append(g.requests, req)
	i := len(g.requests) - 1
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i], nil
}

type generatorFunc func(ctx context.Context, req output.GenerateRequest) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req output.GenerateRequest) (string, error) {
	return f(ctx, req)
}

type reviewerFunc func(ctx context.Context, thought string) (string, error)

func (f reviewerFunc) Review(ctx context.Context, thought string) (string, error) {
	return f(ctx, thought)
}

var echoReviewer = reviewerFunc(func(_ context.Context, thought string) (string, error) {
	return "reviewed: " + thought, nil
})

type weatherTool struct{ calls int }

func (w *weatherTool) Name() entity.ToolName { return entity.ToolGetWeather }
func (w *weatherTool) Description() string   { return "weather" }
func (w *weatherTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"city": map[string]interface{}{"type": "string"}},
		"required":   []string{"city"},
	}
}
func (w *weatherTool) Execute(_ context.Context, input map[string]any) (string, error) {
	w.calls++
	return fmt.Sprintf("The weather in %s is Sunny +31°C.", input["city"]), nil
}

func newReasoningEngine(t *testing.T, gen output.GeneratorPort, maxSteps int) *Engine {
	t.Helper()
	e, err := New(
		Config{Protocol: entity.ReasoningProtocol("You reason in JSON steps."), Model: "test-model", MaxSteps: maxSteps},
		gen, echoReviewer, nil, nil, logger.NewNop(),
	)
	require.NoError(t, err)
	return e
}

func newToolEngine(t *testing.T, gen output.GeneratorPort, tools ...output.ToolPort) *Engine {
	t.Helper()
	registry, err := service.NewToolRegistry(tools...)
	require.NoError(t, err)
	e, err := New(
		Config{Protocol: entity.ToolCallingProtocol("You call tools in JSON steps."), MaxSteps: 8},
		gen, nil, service.NewDispatcher(registry, logger.NewNop()), nil, logger.NewNop(),
	)
	require.NoError(t, err)
	return e
}

func collect(run *Run) []entity.Step {
	var steps []entity.Step
	for step := range run.Steps() {
		steps = append(steps, step)
	}
	return steps
}

func TestRun_ImmediateResult(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"step":"result","content":"42"}`}}
	e := newReasoningEngine(t, gen, 12)

	res, err := e.Execute(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, []entity.Step{{Kind: entity.StepResult, Content: "42"}}, res.Steps)
	require.NotNil(t, res.Result)
	assert.Equal(t, "42", res.Result.Content)
	assert.Equal(t, entity.OutcomeResult, res.Outcome)
	assert.Equal(t, 1, res.GeneratorCalls)
	assert.NotEmpty(t, res.RunID)
}

func TestRun_UnparsableResponseFallsBack(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"I think the answer is 4"}}
	e := newReasoningEngine(t, gen, 12)

	res, err := e.Execute(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, []entity.Step{{Kind: entity.StepOutput, Content: "I think the answer is 4"}}, res.Steps)
	assert.Equal(t, entity.OutcomeFallback, res.Outcome)
	assert.Nil(t, res.Result)
	assert.Len(t, gen.requests, 1)
}

func TestRun_RawResponseRecordedBeforeParsing(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"not json"}}
	e := newReasoningEngine(t, gen, 12)

	run := e.NewRun(context.Background(), "q")
	collect(run)

	last, ok := run.Transcript().Last()
	require.True(t, ok)
	assert.Equal(t, entity.Turn{Role: entity.RoleModel, Source: entity.SourceResponse, Text: "not json"}, last)
}

func TestRun_TranscriptSeededWithInstructionThenQuery(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"step":"result","content":"42"}`}}
	e := newReasoningEngine(t, gen, 12)

	_, err := e.Execute(context.Background(), "what is 6*7")
	require.NoError(t, err)

	turns := gen.requests[0].Turns
	require.Len(t, turns, 2)
	assert.Equal(t, "You reason in JSON steps.", turns[0].Text)
	assert.Equal(t, "what is 6*7", turns[1].Text)
	assert.Equal(t, "test-model", gen.requests[0].Model)
	assert.Equal(t, []string{"step", "content"}, gen.requests[0].Schema["required"])
}

func TestRun_UnknownKindIsSteeredNotTerminal(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"step":"ponder","content":"hmm"}`,
		`{"step":"RESULT","content":"42"}`,
	}}
	e := newReasoningEngine(t, gen, 12)

	run := e.NewRun(context.Background(), "q")
	steps := collect(run)

	assert.Equal(t, []entity.Step{{Kind: entity.StepResult, Content: "42"}}, steps)
	assert.Equal(t, entity.OutcomeResult, run.Outcome())

	second := gen.requests[1].Turns
	steer := second[len(second)-1]
	assert.Equal(t, entity.RoleUser, steer.Role)
	assert.Equal(t, entity.SourceSteering, steer.Source)
	assert.JSONEq(t,
		`{"step":"validate","content":"Step invalid. Use one of: analyse, think, output, validate, result. Reply again as JSON only."}`,
		steer.Text)
}

func TestRun_MalformedEnvelopeIsSteered(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"step":"analyse"}`,
		`{"step":"result","content":"42"}`,
	}}
	e := newReasoningEngine(t, gen, 12)

	res, err := e.Execute(context.Background(), "q")

	require.NoError(t, err)
	assert.Len(t, res.Steps, 1)
	steer := gen.requests[1].Turns[len(gen.requests[1].Turns)-1]
	assert.Contains(t, steer.Text, "Step malformed")
}

func TestRun_RepeatedContentIsNotEmitted(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"step":"analyse","content":"add two numbers"}`,
		`{"step":"output","content":"  add two numbers \n"}`,
		`{"step":"output","content":"4"}`,
		`{"step":"result","content":"2+2 is 4"}`,
	}}
	e := newReasoningEngine(t, gen, 12)

	res, err := e.Execute(context.Background(), "q")

	require.NoError(t, err)
	require.Len(t, res.Steps, 3)
	for i := 1; i < len(res.Steps); i++ {
		assert.NotEqual(t, strings.TrimSpace(res.Steps[i-1].Content), strings.TrimSpace(res.Steps[i].Content))
	}
	third := gen.requests[2].Turns
	assert.Equal(t, repeatTurn, third[len(third)-1].Text)
	assert.Equal(t, 4, res.GeneratorCalls)
}

func TestRun_GeneratorCallsNeverExceedBudget(t *testing.T) {
	for _, budget := range []int{1, 2, 5, 9} {
		t.Run(fmt.Sprintf("budget %d", budget), func(t *testing.T) {
			n := 0
			gen := generatorFunc(func(context.Context, output.GenerateRequest) (string, error) {
				n++
				return fmt.Sprintf(`{"step":"analyse","content":"thought %d"}`, n), nil
			})
			e := newReasoningEngine(t, gen, budget)

			res, err := e.Execute(context.Background(), "q")

			require.NoError(t, err)
			assert.Equal(t, budget, n)
			assert.Equal(t, budget, res.GeneratorCalls)
			assert.Equal(t, entity.OutcomeBudgetExhausted, res.Outcome)
		})
	}
}

func TestRun_ThinkFollowedByReviewBeforeNextCall(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"step":"think","content":"2+2 means adding"}`,
		`{"step":"result","content":"4"}`,
	}}
	e := newReasoningEngine(t, gen, 12)

	_, err := e.Execute(context.Background(), "q")
	require.NoError(t, err)

	turns := gen.requests[1].Turns
	require.Len(t, turns, 5)
	assert.Equal(t, entity.SourceResponse, turns[2].Source)
	assert.Equal(t, entity.Turn{
		Role:   entity.RoleModel,
		Source: entity.SourceReview,
		Text:   `{"step":"validate","content":"reviewed: 2+2 means adding"}`,
	}, turns[3])
	assert.Equal(t, thinkTurn, turns[4].Text)
}

func TestRun_ThinkStreakNudgesTowardOutput(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"step":"think","content":"one"}`,
		`{"step":"think","content":"two"}`,
		`{"step":"think","content":"three"}`,
		`{"step":"output","content":"done"}`,
		`{"step":"result","content":"done!"}`,
	}}
	e := newReasoningEngine(t, gen, 12)

	_, err := e.Execute(context.Background(), "q")
	require.NoError(t, err)

	lastTurn := func(call int) string {
		turns := gen.requests[call].Turns
		return turns[len(turns)-1].Text
	}
	assert.Equal(t, thinkTurn, lastTurn(1))
	assert.Equal(t, thinkTurn, lastTurn(2))
	assert.Equal(t, "Too many 'think' steps. Move to 'output' with a concrete answer. JSON only.", lastTurn(3))
	assert.Equal(t, continueTurn, lastTurn(4))
}

func TestRun_NonThinkStepResetsStreak(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"step":"think","content":"one"}`,
		`{"step":"think","content":"two"}`,
		`{"step":"analyse","content":"look again"}`,
		`{"step":"think","content":"three"}`,
		`{"step":"result","content":"ok"}`,
	}}
	e := newReasoningEngine(t, gen, 12)

	_, err := e.Execute(context.Background(), "q")
	require.NoError(t, err)

	turns := gen.requests[4].Turns
	assert.Equal(t, thinkTurn, turns[len(turns)-1].Text)
}

func TestRun_BudgetOfOneWithEndlessThinking(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"step":"think","content":"x"}`}}
	e := newReasoningEngine(t, gen, 1)

	res, err := e.Execute(context.Background(), "q")

	require.NoError(t, err)
	assert.Len(t, gen.requests, 1)
	assert.Equal(t, entity.OutcomeBudgetExhausted, res.Outcome)
	assert.Nil(t, res.Result)
	for _, step := range res.Steps {
		assert.NotEqual(t, entity.StepResult, step.Kind)
	}
}

func TestRun_ReviewerFailureBecomesText(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"step":"think","content":"hmm"}`,
		`{"step":"result","content":"ok"}`,
	}}
	e, err := New(
		Config{Protocol: entity.ReasoningProtocol("x")},
		gen,
		reviewerFunc(func(context.Context, string) (string, error) { return "", errors.New("quota exceeded") }),
		nil, nil, logger.NewNop(),
	)
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeResult, res.Outcome)
	assert.Contains(t, gen.requests[1].Turns[3].Text, "(external) Review unavailable: quota exceeded")
}

func TestRun_UnknownToolIsEmittedAndObserved(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"step":"action","function":"missing_tool","input":{}}`,
		`{"step":"output","content":"I could not do that."}`,
	}}
	e := newToolEngine(t, gen, &weatherTool{})

	res, err := e.Execute(context.Background(), "q")

	require.NoError(t, err)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, entity.StepAction, res.Steps[0].Kind)
	assert.Equal(t, entity.ToolName("missing_tool"), res.Steps[0].ToolName)
	assert.Equal(t, entity.OutcomeResult, res.Outcome)

	obs := gen.requests[1].Turns[3]
	assert.Equal(t, entity.SourceObservation, obs.Source)
	assert.JSONEq(t,
		`{"step":"observe","output":"Error: tool 'missing_tool' is not available. Available tools: get_weather"}`,
		obs.Text)
}

func TestRun_ToolObservationFeedsNextCall(t *testing.T) {
	tool := &weatherTool{}
	gen := &scriptedGenerator{responses: []string{
		`{"step":"plan","content":"Look up the weather in Delhi"}`,
		"Calling the tool now:\n" + `{"step":"action","function":"get_weather","input":{"city":"Delhi"}}`,
		`{"step":"output","content":"It is sunny in Delhi."}`,
	}}
	e := newToolEngine(t, gen, tool)

	res, err := e.Execute(context.Background(), "weather in delhi?")

	require.NoError(t, err)
	assert.Equal(t, 1, tool.calls)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, map[string]any{"city": "Delhi"}, res.Steps[1].ToolInput)
	require.NotNil(t, res.Result)
	assert.Equal(t, entity.StepOutput, res.Result.Kind)

	turns := gen.requests[2].Turns
	assert.JSONEq(t, `{"step":"observe","output":"The weather in Delhi is Sunny +31°C."}`, turns[len(turns)-1].Text)
}

func TestRun_RepeatedActionIsSteered(t *testing.T) {
	tool := &weatherTool{}
	gen := &scriptedGenerator{responses: []string{
		`{"step":"action","function":"get_weather","input":{"city":"Delhi"}}`,
		`{"step":"action","function":"get_weather","input":{"city":"Delhi"}}`,
		`{"step":"output","content":"Sunny."}`,
	}}
	e := newToolEngine(t, gen, tool)

	res, err := e.Execute(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, 1, tool.calls)
	assert.Len(t, res.Steps, 2)
}

func TestRun_GeneratorErrorIsUnavailable(t *testing.T) {
	gen := generatorFunc(func(context.Context, output.GenerateRequest) (string, error) {
		return "", errors.New("connection refused")
	})
	e := newReasoningEngine(t, gen, 12)

	res, err := e.Execute(context.Background(), "q")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)
	assert.Equal(t, entity.OutcomeGeneratorUnavailable, res.Outcome)
	assert.Empty(t, res.Steps)
	assert.Equal(t, 1, res.GeneratorCalls)
}

func TestRun_CallTimeout(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, _ output.GenerateRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	e, err := New(
		Config{Protocol: entity.ReasoningProtocol("x"), CallTimeout: 20 * time.Millisecond},
		gen, echoReviewer, nil, nil, logger.NewNop(),
	)
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), "q")

	assert.ErrorIs(t, err, ErrGeneratorUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, entity.OutcomeGeneratorUnavailable, res.Outcome)
}

func TestRun_AbandonedStopsCallingGenerator(t *testing.T) {
	n := 0
	gen := generatorFunc(func(context.Context, output.GenerateRequest) (string, error) {
		n++
		return fmt.Sprintf(`{"step":"analyse","content":"step %d"}`, n), nil
	})
	e := newReasoningEngine(t, gen, 12)

	run := e.NewRun(context.Background(), "q")
	for range run.Steps() {
		break
	}

	assert.Equal(t, 1, n)
	assert.Equal(t, entity.OutcomeAbandoned, run.Outcome())
	assert.NoError(t, run.Err())
}

func TestRun_StepsIsSingleUse(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"step":"result","content":"42"}`}}
	e := newReasoningEngine(t, gen, 12)

	run := e.NewRun(context.Background(), "q")
	assert.Len(t, collect(run), 1)
	assert.Empty(t, collect(run))
	assert.Len(t, gen.requests, 1)
}

func TestNew_RejectsInvalidProtocol(t *testing.T) {
	p := entity.ReasoningProtocol("x")
	p.Terminal = []entity.StepKind{"finish"}

	_, err := New(Config{Protocol: p}, &scriptedGenerator{}, echoReviewer, nil, nil, logger.NewNop())

	assert.ErrorIs(t, err, entity.ErrInvalidProtocol)
}

func TestNew_RequiresReviewerForThinkProtocols(t *testing.T) {
	_, err := New(Config{Protocol: entity.ReasoningProtocol("x")}, &scriptedGenerator{}, nil, nil, nil, logger.NewNop())

	assert.ErrorContains(t, err, "reviewer is required")
}

func TestNew_AppliesDefaults(t *testing.T) {
	e := newReasoningEngine(t, &scriptedGenerator{}, 0)

	assert.Equal(t, DefaultMaxSteps, e.cfg.MaxSteps)
	assert.Equal(t, DefaultCallTimeout, e.cfg.CallTimeout)
	assert.Equal(t, "reasoning", e.Protocol().Name)
}
