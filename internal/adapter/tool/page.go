package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

var _ output.ToolPort = (*FetchPageTool)(nil)

const maxPageBytes = 2 << 20

type FetchPageTool struct {
	client *http.Client
	clean  CleanConfig
	logger output.LoggerPort
}

func NewFetchPageTool(logger output.LoggerPort) *FetchPageTool {
	return &FetchPageTool{
		client: &http.Client{Timeout: 20 * time.Second},
		clean:  DefaultCleanConfig,
		logger: logger,
	}
}

func (t *FetchPageTool) Name() entity.ToolName { return entity.ToolFetchPage }
func (t *FetchPageTool) Description() string {
	return "Downloads a web page and returns its body as cleaned HTML without scripts or styling"
}
func (t *FetchPageTool) Parameters() map[string]interface{} {
	return objectSchema([]string{"url"}, map[string]string{"url": "Absolute http or https URL"})
}

func (t *FetchPageTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	raw, err := nonEmptyArg(input, "url")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("'%s' is not an http(s) URL", raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u, err)
	}

	cleaned, err := CleanHTML(string(body), &t.clean)
	if err != nil {
		return "", fmt.Errorf("clean %s: %w", u, err)
	}

	t.logger.Debug("Page fetched", "url", u.String(), "rawLen", len(body), "cleanLen", len(cleaned))
	return cleaned, nil
}
