package output

type MetricsPort interface {
	GeneratorCall(protocol string, failed bool)
	StepEmitted(protocol, kind string)
	Steering(protocol, reason string)
	ToolInvoked(tool, status string)
	RunFinished(protocol, outcome string)
}
