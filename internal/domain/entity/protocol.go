package entity

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidProtocol = errors.New("invalid protocol")

const DefaultThinkStreakLimit = 3

type DecodingMode string

const (
	DecodingStrict  DecodingMode = "strict"
	DecodingLenient DecodingMode = "lenient"
)

// Protocol is the step vocabulary an engine is configured with for its
// lifetime: which kinds are allowed, which end a run, and how the engine
// treats the special kinds.
type Protocol struct {
	Name        string
	Kinds       []StepKind
	Terminal    []StepKind
	Instruction string
	Decoding    DecodingMode

	// ThinkKind triggers the reviewer and the streak guard. Empty disables both.
	ThinkKind StepKind
	// ActionKind carries tool calls. Empty disables tool dispatch.
	ActionKind StepKind
	// ConvergeKind is what the streak nudge asks the generator to move to.
	ConvergeKind     StepKind
	ThinkStreakLimit int
}

func ReasoningProtocol(instruction string) Protocol {
	return Protocol{
		Name:             "reasoning",
		Kinds:            []StepKind{StepAnalyse, StepThink, StepOutput, StepValidate, StepResult},
		Terminal:         []StepKind{StepResult},
		Instruction:      instruction,
		Decoding:         DecodingStrict,
		ThinkKind:        StepThink,
		ConvergeKind:     StepOutput,
		ThinkStreakLimit: DefaultThinkStreakLimit,
	}
}

func ToolCallingProtocol(instruction string) Protocol {
	return Protocol{
		Name:        "tools",
		Kinds:       []StepKind{StepPlan, StepAction, StepOutput},
		Terminal:    []StepKind{StepOutput},
		Instruction: instruction,
		Decoding:    DecodingLenient,
		ActionKind:  StepAction,
	}
}

func (p Protocol) Allows(kind StepKind) bool {
	return containsKind(p.Kinds, kind)
}

func (p Protocol) IsTerminal(kind StepKind) bool {
	return containsKind(p.Terminal, kind)
}

func (p Protocol) KindNames() []string {
	names := make([]string, 0, len(p.Kinds))
	for _, k := range p.Kinds {
		names = append(names, string(k))
	}
	return names
}

// Validate reports configuration errors. It is called once, before any run.
func (p Protocol) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProtocol)
	}
	if len(p.Kinds) == 0 {
		return fmt.Errorf("%w: %s: no step kinds", ErrInvalidProtocol, p.Name)
	}
	seen := make(map[StepKind]struct{}, len(p.Kinds))
	for _, k := range p.Kinds {
		if k == "" || string(k) != strings.ToLower(strings.TrimSpace(string(k))) {
			return fmt.Errorf("%w: %s: step kind %q must be lowercase and non-empty", ErrInvalidProtocol, p.Name, k)
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: %s: duplicate step kind %q", ErrInvalidProtocol, p.Name, k)
		}
		seen[k] = struct{}{}
	}
	if len(p.Terminal) == 0 {
		return fmt.Errorf("%w: %s: no terminal step kind", ErrInvalidProtocol, p.Name)
	}
	for _, k := range p.Terminal {
		if !p.Allows(k) {
			return fmt.Errorf("%w: %s: terminal kind %q is not in the vocabulary", ErrInvalidProtocol, p.Name, k)
		}
	}
	for field, k := range map[string]StepKind{"think": p.ThinkKind, "action": p.ActionKind, "converge": p.ConvergeKind} {
		if k != "" && !p.Allows(k) {
			return fmt.Errorf("%w: %s: %s kind %q is not in the vocabulary", ErrInvalidProtocol, p.Name, field, k)
		}
	}
	if p.ActionKind != "" && p.IsTerminal(p.ActionKind) {
		return fmt.Errorf("%w: %s: action kind cannot be terminal", ErrInvalidProtocol, p.Name)
	}
	if p.ThinkKind != "" {
		if p.IsTerminal(p.ThinkKind) {
			return fmt.Errorf("%w: %s: think kind cannot be terminal", ErrInvalidProtocol, p.Name)
		}
		if p.ConvergeKind == "" {
			return fmt.Errorf("%w: %s: think kind requires a converge kind", ErrInvalidProtocol, p.Name)
		}
		if p.ThinkStreakLimit < 1 {
			return fmt.Errorf("%w: %s: think streak limit must be positive", ErrInvalidProtocol, p.Name)
		}
	}
	switch p.Decoding {
	case DecodingStrict, DecodingLenient:
	default:
		return fmt.Errorf("%w: %s: unknown decoding mode %q", ErrInvalidProtocol, p.Name, p.Decoding)
	}
	if strings.TrimSpace(p.Instruction) == "" {
		return fmt.Errorf("%w: %s: system instruction is empty", ErrInvalidProtocol, p.Name)
	}
	return nil
}

func containsKind(kinds []StepKind, kind StepKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
