package output

import "context"

// ReviewerPort reviews a single "think" step and returns the text of the
// synthetic validate step.
type ReviewerPort interface {
	Review(ctx context.Context, thought string) (string, error)
}
