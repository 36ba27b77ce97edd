package output

import (
	"context"

	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

// GeneratorPort produces the next raw response for a transcript. One call per
// turn; the engine never retries on semantic grounds.
type GeneratorPort interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type GenerateRequest struct {
	Turns           []entity.Turn
	Model           string
	Temperature     float32
	MaxOutputTokens int
	// Schema is a JSON Schema hint for structured output. Adapters that
	// cannot enforce it may ignore it.
	Schema map[string]any
}
