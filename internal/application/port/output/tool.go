package output

import (
	"context"

	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

type ToolPort interface {
	Name() entity.ToolName
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, input map[string]any) (string, error)
}

type ToolRegistry interface {
	Get(name entity.ToolName) (ToolPort, bool)
	All() []ToolPort
	Definitions() []entity.ToolDefinition
}
