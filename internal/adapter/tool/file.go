package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

var _ output.ToolPort = (*WriteFileTool)(nil)

// WriteFileTool writes files below its root only.
type WriteFileTool struct {
	root   string
	logger output.LoggerPort
}

func NewWriteFileTool(root string, logger output.LoggerPort) *WriteFileTool {
	return &WriteFileTool{root: root, logger: logger}
}

func (t *WriteFileTool) Name() entity.ToolName { return entity.ToolWriteToFile }
func (t *WriteFileTool) Description() string {
	return "Takes a filename and content and writes the content to the file. Always use it for writing files."
}
func (t *WriteFileTool) Parameters() map[string]interface{} {
	return objectSchema([]string{"filename", "content"}, map[string]string{
		"filename": "Path relative to the working directory",
		"content":  "Full file content",
	})
}

func (t *WriteFileTool) Execute(_ context.Context, input map[string]any) (string, error) {
	filename, err := nonEmptyArg(input, "filename")
	if err != nil {
		return "", err
	}
	content, err := stringArg(input, "content")
	if err != nil {
		return "", err
	}

	path, err := t.resolve(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("writing to file: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing to file: %w", err)
	}

	t.logger.Info("File written", "path", path, "bytes", len(content))
	return fmt.Sprintf("Successfully wrote to %s.", filename), nil
}

func (t *WriteFileTool) resolve(filename string) (string, error) {
	root, err := filepath.Abs(t.root)
	if err != nil {
		return "", fmt.Errorf("resolve work dir: %w", err)
	}
	path := filepath.Join(root, filename)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("'%s' is outside the working directory", filename)
	}
	return path, nil
}
