package static

import (
	"context"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
)

var _ output.ReviewerPort = (*Reviewer)(nil)

const previewRunes = 200

// Reviewer approves every thought without calling out. It is the default when
// no reviewer credentials are configured.
type Reviewer struct{}

func New() *Reviewer {
	return &Reviewer{}
}

func (r *Reviewer) Review(_ context.Context, thought string) (string, error) {
	runes := []rune(thought)
	if len(runes) > previewRunes {
		runes = runes[:previewRunes]
	}
	return "(external) Validation looks reasonable: " + string(runes), nil
}
