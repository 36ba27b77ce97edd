package tool

import (
	"fmt"
	"strings"
)

// stringArg reads a required string argument. The dispatcher checks the
// schema first, so this only guards direct callers.
func stringArg(input map[string]any, key string) (string, error) {
	v, ok := input[key]
	if !ok {
		return "", fmt.Errorf("'%s' is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("'%s' must be a string, got %T", key, v)
	}
	return s, nil
}

func nonEmptyArg(input map[string]any, key string) (string, error) {
	s, err := stringArg(input, key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("'%s' must not be empty", key)
	}
	return s, nil
}

func objectSchema(required []string, props map[string]string) map[string]interface{} {
	properties := make(map[string]interface{}, len(props))
	for name, desc := range props {
		properties[name] = map[string]interface{}{
			"type":        "string",
			"description": desc,
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
