package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

var _ output.ToolPort = (*CommandTool)(nil)

const DefaultCommandTimeout = 30 * time.Second

// CommandTool runs a shell command in the work dir. A failing command is an
// observation, not an error.
type CommandTool struct {
	workdir string
	timeout time.Duration
	logger  output.LoggerPort
}

func NewCommandTool(workdir string, timeout time.Duration, logger output.LoggerPort) *CommandTool {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &CommandTool{workdir: workdir, timeout: timeout, logger: logger}
}

func (t *CommandTool) Name() entity.ToolName { return entity.ToolRunCommand }
func (t *CommandTool) Description() string {
	return "Takes a linux command as a string, executes it and returns the output. Do not use it to write files."
}
func (t *CommandTool) Parameters() map[string]interface{} {
	return objectSchema([]string{"command"}, map[string]string{"command": "Shell command, e.g. ls -l"})
}

func (t *CommandTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	command, err := nonEmptyArg(input, "command")
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = t.workdir
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.logger.Debug("Running command", "command", command, "dir", t.workdir)

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			detail = fmt.Sprintf("command timed out after %s", t.timeout)
		case detail == "":
			detail = err.Error()
		}
		return "Error executing command:\n" + detail, nil
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "Command executed successfully.", nil
	}
	return out, nil
}
