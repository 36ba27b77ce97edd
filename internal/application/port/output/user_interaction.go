package output

import (
	"context"

	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

type UserInteractionPort interface {
	// AskQuery returns io.EOF when there is no more input.
	AskQuery(ctx context.Context) (string, error)

	ShowStep(ctx context.Context, step entity.Step)
	ShowOutcome(ctx context.Context, outcome entity.Outcome, err error)
}
