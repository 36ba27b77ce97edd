package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/04shubham7/genai-cwc-shubham/internal/application/port/output"
)

var _ output.MetricsPort = (*Prometheus)(nil)

const namespace = "step_agent"

// Prometheus keeps its own registry so tests and multiple engines in one
// process do not collide on the default one.
type Prometheus struct {
	registry       *prometheus.Registry
	generatorCalls *prometheus.CounterVec
	steps          *prometheus.CounterVec
	steering       *prometheus.CounterVec
	tools          *prometheus.CounterVec
	runs           *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		generatorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_calls_total",
			Help:      "Generator calls by protocol and whether they failed.",
		}, []string{"protocol", "failed"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_emitted_total",
			Help:      "Steps emitted to consumers by protocol and kind.",
		}, []string{"protocol", "kind"}),
		steering: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steering_turns_total",
			Help:      "Steering turns appended by protocol and reason.",
		}, []string{"protocol", "reason"}),
		tools: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool and status.",
		}, []string{"tool", "status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by protocol and outcome.",
		}, []string{"protocol", "outcome"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.generatorCalls, p.steps, p.steering, p.tools, p.runs,
	)
	return p
}

func (p *Prometheus) GeneratorCall(protocol string, failed bool) {
	p.generatorCalls.WithLabelValues(protocol, strconv.FormatBool(failed)).Inc()
}

func (p *Prometheus) StepEmitted(protocol, kind string) {
	p.steps.WithLabelValues(protocol, kind).Inc()
}

func (p *Prometheus) Steering(protocol, reason string) {
	p.steering.WithLabelValues(protocol, reason).Inc()
}

func (p *Prometheus) ToolInvoked(tool, status string) {
	p.tools.WithLabelValues(tool, status).Inc()
}

func (p *Prometheus) RunFinished(protocol, outcome string) {
	p.runs.WithLabelValues(protocol, outcome).Inc()
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

type Nop struct{}

var _ output.MetricsPort = Nop{}

func NewNop() Nop { return Nop{} }

func (Nop) GeneratorCall(string, bool) {}
func (Nop) StepEmitted(string, string) {}
func (Nop) Steering(string, string)    {}
func (Nop) ToolInvoked(string, string) {}
func (Nop) RunFinished(string, string) {}
