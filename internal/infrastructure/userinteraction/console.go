package userinteraction

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

var _ output.UserInteractionPort = (*ConsoleUserInteraction)(nil)

type ConsoleUserInteraction struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewConsoleUserInteraction() *ConsoleUserInteraction {
	return NewConsole(os.Stdin, color.Output)
}

func NewConsole(in io.Reader, out io.Writer) *ConsoleUserInteraction {
	return &ConsoleUserInteraction{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (u *ConsoleUserInteraction) AskQuery(ctx context.Context) (string, error) {
	for {
		fmt.Fprint(u.out, "\n> ")

		line, err := u.reader.ReadString('\n')
		query := strings.TrimSpace(line)
		if err != nil {
			if err == io.EOF && query != "" {
				return query, nil
			}
			if err == io.EOF {
				return "", io.EOF
			}
			return "", fmt.Errorf("failed to read user input: %w", err)
		}
		if query != "" {
			return query, nil
		}
	}
}

func (u *ConsoleUserInteraction) ShowStep(ctx context.Context, step entity.Step) {
	icon, c := stepDisplay(step.Kind)

	if step.ToolName != "" {
		c.Fprintf(u.out, "%s [%s] %s\n", icon, step.Kind, step.ToolName)
		if summary := formatToolInput(step.ToolInput); summary != "" {
			color.New(color.Faint).Fprintf(u.out, "   %s\n", summary)
		}
		return
	}

	c.Fprintf(u.out, "%s [%s] ", icon, step.Kind)
	fmt.Fprintln(u.out, truncate(step.Content, 500))
}

func (u *ConsoleUserInteraction) ShowOutcome(ctx context.Context, outcome entity.Outcome, err error) {
	switch outcome {
	case entity.OutcomeResult:
		color.New(color.FgGreen, color.Bold).Fprintln(u.out, "✓ done")
	case entity.OutcomeFallback:
		color.New(color.FgYellow).Fprintln(u.out, "⚠ the model answered outside the protocol; showing its raw reply")
	case entity.OutcomeBudgetExhausted:
		color.New(color.FgYellow).Fprintln(u.out, "⚠ no result reached within the step budget")
	case entity.OutcomeAbandoned:
		color.New(color.Faint).Fprintln(u.out, "run stopped")
	case entity.OutcomeGeneratorUnavailable:
		red := color.New(color.FgRed)
		red.Fprint(u.out, "❌ generator unavailable: ")
		if err != nil {
			fmt.Fprintln(u.out, truncate(err.Error(), 300))
		} else {
			fmt.Fprintln(u.out)
		}
	}
}

func stepDisplay(kind entity.StepKind) (string, *color.Color) {
	switch kind {
	case entity.StepAnalyse:
		return "🔍", color.New(color.FgCyan)
	case entity.StepThink:
		return "💭", color.New(color.FgBlue)
	case entity.StepValidate:
		return "☑", color.New(color.FgMagenta)
	case entity.StepOutput:
		return "🤖", color.New(color.FgGreen)
	case entity.StepResult:
		return "🎯", color.New(color.FgGreen, color.Bold)
	case entity.StepPlan:
		return "🧠", color.New(color.FgCyan)
	case entity.StepAction:
		return "🛠", color.New(color.FgYellow, color.Bold)
	}
	return "•", color.New(color.Reset)
}

func formatToolInput(input map[string]any) string {
	if len(input) == 0 {
		return ""
	}
	data, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return truncate(string(data), 120)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
