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

var _ output.ToolPort = (*WeatherTool)(nil)

const DefaultWeatherURL = "https://wttr.in"

type WeatherTool struct {
	baseURL string
	client  *http.Client
	logger  output.LoggerPort
}

func NewWeatherTool(baseURL string, logger output.LoggerPort) *WeatherTool {
	if baseURL == "" {
		baseURL = DefaultWeatherURL
	}
	return &WeatherTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

func (t *WeatherTool) Name() entity.ToolName { return entity.ToolGetWeather }
func (t *WeatherTool) Description() string {
	return "Takes a city name as an input and returns the current weather for the city"
}
func (t *WeatherTool) Parameters() map[string]interface{} {
	return objectSchema([]string{"city"}, map[string]string{"city": "City name, e.g. Delhi"})
}

func (t *WeatherTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	city, err := nonEmptyArg(input, "city")
	if err != nil {
		return "", err
	}
	city = strings.TrimSpace(city)

	endpoint := fmt.Sprintf("%s/%s?format=%%C+%%t", t.baseURL, url.PathEscape(city))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build weather request: %w", err)
	}
	req.Header.Set("User-Agent", "curl/8.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather lookup for %s: %w", city, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("Weather service returned non-200", "city", city, "status", resp.StatusCode)
		return "", fmt.Errorf("something went wrong looking up the weather for %s (status %d)", city, resp.StatusCode)
	}

	return fmt.Sprintf("The weather in %s is %s.", city, strings.TrimSpace(string(body))), nil
}
