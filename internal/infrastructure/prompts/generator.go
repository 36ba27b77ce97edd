package prompts

import (
	"bytes"
	"sort"
	"text/template"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
)

type ToolInfo struct {
	Name        string
	Description string
	Params      []string
}

type ToolsPromptData struct {
	Tools []ToolInfo
}

// GenerateToolsPrompt renders the tool-calling instruction with the tools
// actually registered.
func GenerateToolsPrompt(baseTemplate string, registry output.ToolRegistry) (string, error) {
	defs := registry.Definitions()
	infos := make([]ToolInfo, 0, len(defs))

	for _, def := range defs {
		infos = append(infos, ToolInfo{
			Name:        def.Name.String(),
			Description: def.Description,
			Params:      paramNames(def.Parameters),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	tmpl, err := template.New("tools").Parse(baseTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ToolsPromptData{Tools: infos}); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func paramNames(schema map[string]interface{}) []string {
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
