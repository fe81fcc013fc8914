package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Stage is a named pipeline step. Naming stages makes the gateway's
// request flow a configuration value that tests can assert on.
type Stage struct {
	Name string
	Wrap Middleware
}

// Pipeline is an ordered list of stages applied around a terminal
// handler. The first stage sees the request first.
type Pipeline struct {
	stages []Stage
}

// NewPipeline creates a pipeline from the given stages.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Append adds stages to the end of the pipeline.
func (p *Pipeline) Append(stages ...Stage) *Pipeline {
	p.stages = append(p.stages, stages...)
	return p
}

// Names returns the stage names in request order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Then wraps the terminal handler with all stages, outermost first.
func (p *Pipeline) Then(handler http.Handler) http.Handler {
	if handler == nil {
		handler = http.DefaultServeMux
	}

	for i := len(p.stages) - 1; i >= 0; i-- {
		handler = p.stages[i].Wrap(handler)
	}

	return handler
}
