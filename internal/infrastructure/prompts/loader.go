package prompts

import (
	_ "embed"
)

//go:embed reasoning.txt
var ReasoningPrompt string

//go:embed tools.txt
var ToolsPrompt string
