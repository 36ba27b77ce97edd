package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/input"
	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
	"github.com/04shubham7/genai-cwc-shubham/internal/application/service"
	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

var (
	_ input.StepRunner = (*Engine)(nil)
	_ input.StepStream = (*Run)(nil)
)

var ErrGeneratorUnavailable = errors.New("generator unavailable")

const (
	DefaultMaxSteps    = 12
	DefaultCallTimeout = 60 * time.Second

	repeatTurn   = "Content repeated. Provide the next distinct step. JSON only."
	continueTurn = "Next step only. JSON only."
	thinkTurn    = "Next step only."
)

type Config struct {
	Protocol        entity.Protocol
	Model           string
	Temperature     float32
	MaxOutputTokens int
	// MaxSteps bounds generator calls per run.
	MaxSteps    int
	CallTimeout time.Duration
}

// Engine drives a generator through one step protocol. It holds no per-run
// state and may serve concurrent runs.
type Engine struct {
	cfg        Config
	generator  output.GeneratorPort
	reviewer   output.ReviewerPort
	dispatcher *service.Dispatcher
	validator  *service.StepValidator
	decoder    service.Decoder
	metrics    output.MetricsPort
	logger     output.LoggerPort

	schemaHint      map[string]any
	invalidKindTurn string
}

func New(
	cfg Config,
	generator output.GeneratorPort,
	reviewer output.ReviewerPort,
	dispatcher *service.Dispatcher,
	metrics output.MetricsPort,
	logger output.LoggerPort,
) (*Engine, error) {
	if err := cfg.Protocol.Validate(); err != nil {
		return nil, err
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.Protocol.ThinkKind != "" && reviewer == nil {
		return nil, fmt.Errorf("protocol %s: reviewer is required for think steps", cfg.Protocol.Name)
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	validator, err := service.NewStepValidator(cfg.Protocol)
	if err != nil {
		return nil, fmt.Errorf("protocol %s: %w", cfg.Protocol.Name, err)
	}

	return &Engine{
		cfg:             cfg,
		generator:       generator,
		reviewer:        reviewer,
		dispatcher:      dispatcher,
		validator:       validator,
		decoder:         service.NewDecoder(cfg.Protocol.Decoding),
		metrics:         metrics,
		logger:          logger.WithField("protocol", cfg.Protocol.Name),
		schemaHint:      service.HintSchema(cfg.Protocol),
		invalidKindTurn: steeringTurn(fmt.Sprintf("Step invalid. Use one of: %s. Reply again as JSON only.", strings.Join(cfg.Protocol.KindNames(), ", "))),
	}, nil
}

func (e *Engine) Protocol() entity.Protocol {
	return e.cfg.Protocol
}

// Stream prepares a run. Nothing happens until Steps is ranged over.
func (e *Engine) Stream(ctx context.Context, query string) input.StepStream {
	return e.NewRun(ctx, query)
}

func (e *Engine) NewRun(ctx context.Context, query string) *Run {
	id := uuid.NewString()
	return &Run{
		id:         id,
		ctx:        ctx,
		engine:     e,
		transcript: service.NewTranscript(e.cfg.Protocol.Instruction, query),
		logger:     e.logger.WithField("run_id", id),
	}
}

// Execute drains a run. On generator failure the partial result is returned
// together with an error wrapping ErrGeneratorUnavailable.
func (e *Engine) Execute(ctx context.Context, query string) (*entity.RunResult, error) {
	run := e.NewRun(ctx, query)

	result := &entity.RunResult{RunID: run.ID(), Steps: []entity.Step{}}
	for step := range run.Steps() {
		result.Steps = append(result.Steps, step)
	}
	result.Outcome = run.Outcome()
	result.GeneratorCalls = run.GeneratorCalls()
	if result.Outcome == entity.OutcomeResult && len(result.Steps) > 0 {
		last := result.Steps[len(result.Steps)-1]
		result.Result = &last
	}
	return result, run.Err()
}

// Run is one pass through the protocol. It owns its transcript and must not
// be shared between goroutines.
type Run struct {
	id         string
	ctx        context.Context
	engine     *Engine
	transcript *service.Transcript
	logger     output.LoggerPort

	started bool
	outcome entity.Outcome
	err     error
	calls   int
}

func (r *Run) ID() string                      { return r.id }
func (r *Run) Outcome() entity.Outcome         { return r.outcome }
func (r *Run) Err() error                      { return r.err }
func (r *Run) GeneratorCalls() int             { return r.calls }
func (r *Run) Transcript() *service.Transcript { return r.transcript }

// Steps yields accepted steps lazily. A run can be iterated once; later calls
// yield nothing.
func (r *Run) Steps() iter.Seq[entity.Step] {
	return func(yield func(entity.Step) bool) {
		if r.started {
			return
		}
		r.started = true

		r.logger.Info("Run started")
		start := time.Now()

		r.outcome, r.err = r.engine.drive(r, yield)

		r.engine.metrics.RunFinished(r.engine.cfg.Protocol.Name, r.outcome.String())
		if r.err != nil {
			r.logger.Error("Run failed", "outcome", r.outcome, "calls", r.calls, "error", r.err)
			return
		}
		r.logger.Info("Run finished", "outcome", r.outcome, "calls", r.calls, "duration", time.Since(start))
	}
}

func (e *Engine) drive(r *Run, yield func(entity.Step) bool) (entity.Outcome, error) {
	p := e.cfg.Protocol
	remaining := e.cfg.MaxSteps
	last := ""
	thinkStreak := 0

	for remaining > 0 {
		remaining--

		raw, err := e.generate(r)
		if err != nil {
			return entity.OutcomeGeneratorUnavailable, fmt.Errorf("%w: %w", ErrGeneratorUnavailable, err)
		}
		r.transcript.Append(entity.RoleModel, entity.SourceResponse, raw)

		obj, ok := e.decoder.Decode(raw)
		if !ok {
			r.logger.Warn("Response is not a JSON object, ending run with raw text", "response", truncate(raw, 200))
			e.metrics.StepEmitted(p.Name, entity.StepOutput.String())
			yield(entity.Step{Kind: entity.StepOutput, Content: raw})
			return entity.OutcomeFallback, nil
		}

		verdict := e.validator.Validate(obj)
		if !verdict.OK {
			r.logger.Debug("Step rejected", "violation", verdict.Violation, "reason", verdict.Reason)
			e.metrics.Steering(p.Name, string(verdict.Violation))
			r.transcript.Append(entity.RoleUser, entity.SourceSteering, e.rejectionTurn(verdict))
			continue
		}
		step := verdict.Step

		fingerprint := step.Fingerprint()
		if service.IsRepeat(fingerprint, last) {
			r.logger.Debug("Step repeated", "kind", step.Kind)
			e.metrics.Steering(p.Name, "repeat")
			r.transcript.Append(entity.RoleUser, entity.SourceSteering, repeatTurn)
			continue
		}
		last = fingerprint

		r.logger.Debug("Step accepted", "kind", step.Kind)
		e.metrics.StepEmitted(p.Name, step.Kind.String())
		if !yield(step) {
			r.logger.Info("Consumer stopped reading")
			return entity.OutcomeAbandoned, nil
		}

		switch {
		case p.IsTerminal(step.Kind):
			return entity.OutcomeResult, nil

		case p.ActionKind != "" && step.Kind == p.ActionKind:
			thinkStreak = 0
			obs := e.invoke(r, step)
			r.transcript.Append(entity.RoleUser, entity.SourceObservation, observationTurn(obs))

		case p.ThinkKind != "" && step.Kind == p.ThinkKind:
			r.transcript.AppendStep(entity.RoleModel, entity.SourceReview, entity.Step{
				Kind:    entity.StepValidate,
				Content: e.review(r, step.Content),
			})
			thinkStreak++
			if thinkStreak >= p.ThinkStreakLimit {
				e.metrics.Steering(p.Name, "think_streak")
				r.transcript.Append(entity.RoleUser, entity.SourceSteering, convergeTurn(p))
			} else {
				r.transcript.Append(entity.RoleUser, entity.SourceSteering, thinkTurn)
			}

		default:
			thinkStreak = 0
			r.transcript.Append(entity.RoleUser, entity.SourceSteering, continueTurn)
		}
	}

	r.logger.Warn("Step budget exhausted", "max_steps", e.cfg.MaxSteps)
	return entity.OutcomeBudgetExhausted, nil
}

func (e *Engine) generate(r *Run) (string, error) {
	ctx, cancel := context.WithTimeout(r.ctx, e.cfg.CallTimeout)
	defer cancel()

	r.calls++
	raw, err := e.generator.Generate(ctx, output.GenerateRequest{
		Turns:           r.transcript.Turns(),
		Model:           e.cfg.Model,
		Temperature:     e.cfg.Temperature,
		MaxOutputTokens: e.cfg.MaxOutputTokens,
		Schema:          e.schemaHint,
	})
	e.metrics.GeneratorCall(e.cfg.Protocol.Name, err != nil)
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (e *Engine) invoke(r *Run, step entity.Step) service.Observation {
	if e.dispatcher == nil {
		obs := service.Observation{
			Text:   fmt.Sprintf("Error: tool '%s' is not available. Available tools: none", step.ToolName),
			Status: service.ToolStatusUnknown,
		}
		e.metrics.ToolInvoked(step.ToolName.String(), string(obs.Status))
		return obs
	}
	obs := e.dispatcher.Invoke(r.ctx, step.ToolName, step.ToolInput)
	e.metrics.ToolInvoked(step.ToolName.String(), string(obs.Status))
	return obs
}

func (e *Engine) review(r *Run, thought string) string {
	text, err := e.reviewer.Review(r.ctx, thought)
	if err != nil {
		r.logger.Warn("Reviewer failed", "error", err)
		return "(external) Review unavailable: " + err.Error()
	}
	return text
}

func (e *Engine) rejectionTurn(v service.Verdict) string {
	if v.Violation == service.ViolationUnknownKind {
		return e.invalidKindTurn
	}
	return steeringTurn(fmt.Sprintf("Step malformed (%s). Use one of: %s. Reply again as JSON only.",
		v.Reason, strings.Join(e.cfg.Protocol.KindNames(), ", ")))
}

func convergeTurn(p entity.Protocol) string {
	return fmt.Sprintf("Too many '%s' steps. Move to '%s' with a concrete answer. JSON only.", p.ThinkKind, p.ConvergeKind)
}

func steeringTurn(content string) string {
	data, _ := json.Marshal(entity.Step{Kind: entity.StepValidate, Content: content})
	return string(data)
}

func observationTurn(obs service.Observation) string {
	data, _ := json.Marshal(map[string]string{"step": entity.StepObserve.String(), "output": obs.Text})
	return string(data)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

type nopMetrics struct{}

func (nopMetrics) GeneratorCall(string, bool) {}
func (nopMetrics) StepEmitted(string, string) {}
func (nopMetrics) Steering(string, string)    {}
func (nopMetrics) ToolInvoked(string, string) {}
func (nopMetrics) RunFinished(string, string) {}
