package input

import (
	"context"
	"iter"

	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

// StepStream is one run of the engine. Steps may be ranged over once; the
// remaining accessors are meaningful after iteration stops.
type StepStream interface {
	ID() string
	Steps() iter.Seq[entity.Step]
	Outcome() entity.Outcome
	Err() error
	GeneratorCalls() int
}

type StepRunner interface {
	Stream(ctx context.Context, query string) StepStream
	Execute(ctx context.Context, query string) (*entity.RunResult, error)
	Protocol() entity.Protocol
}
