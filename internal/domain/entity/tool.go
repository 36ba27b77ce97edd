package entity

type ToolName string

const (
	ToolGetWeather  ToolName = "get_weather"
	ToolRunCommand  ToolName = "run_command"
	ToolWriteToFile ToolName = "write_to_file"
	ToolFetchPage   ToolName = "fetch_page"
)

func (t ToolName) String() string {
	return string(t)
}

type ToolDefinition struct {
	Name        ToolName
	Description string
	Parameters  map[string]interface{}
}
