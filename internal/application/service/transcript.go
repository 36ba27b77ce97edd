package service

import (
	"encoding/json"

	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

// Transcript is the append-only record of one run. It is owned by a single
// run and is not safe for concurrent use.
type Transcript struct {
	turns []entity.Turn
}

func NewTranscript(instruction, query string) *Transcript {
	t := &Transcript{turns: make([]entity.Turn, 0, 16)}
	t.Append(entity.RoleUser, entity.SourceInstruction, instruction)
	t.Append(entity.RoleUser, entity.SourceQuery, query)
	return t
}

func (t *Transcript) Append(role entity.MessageRole, source entity.TurnSource, text string) {
	t.turns = append(t.turns, entity.Turn{Role: role, Source: source, Text: text})
}

// AppendStep appends a step serialized as JSON.
func (t *Transcript) AppendStep(role entity.MessageRole, source entity.TurnSource, step entity.Step) {
	data, err := json.Marshal(step)
	if err != nil {
		// Steps built by the engine always marshal; keep the content readable regardless.
		t.Append(role, source, step.Content)
		return
	}
	t.Append(role, source, string(data))
}

// Turns returns a copy so callers cannot rewrite history.
func (t *Transcript) Turns() []entity.Turn {
	out := make([]entity.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

func (t *Transcript) Len() int {
	return len(t.turns)
}

func (t *Transcript) Last() (entity.Turn, bool) {
	if len(t.turns) == 0 {
		return entity.Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}
