// Package annotations provides a low-overhead event stream for the
// optimizer's audit trail: which transforms ran, whether they changed the
// plan, and what the plan looked like afterwards. The harness subscribes a
// handler and diffs the formatted output against golden files.
package annotations

import (
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Transform outcomes
	TransformApplied  = "transform/applied"
	TransformNoChange = "transform/no-change"

	// Fixpoint driver
	FixpointConverged = "fixpoint/converged"
	FixpointLimit     = "fixpoint/limit"

	// Optimization lifecycle
	OptimizeBegin = "optimize/begin"
	OptimizeFinal = "optimize/final"
	OptimizeError = "optimize/error"
)

// Event records one optimizer occurrence.
type Event struct {
	Name    string                 // Event name using the constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Event-specific data: transform, plan, iterations
}

// Handler processes events as they occur.
type Handler func(event Event)

// Collector accumulates events during an optimization run. A nil handler
// disables collection entirely; emitting is then a no-op.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event
}

// NewCollector creates a collector delivering to handler.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 32),
	}
}

// Enabled reports whether events will be delivered.
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// Emit records an instantaneous event.
func (c *Collector) Emit(name string, data map[string]interface{}) {
	if !c.Enabled() {
		return
	}
	now := time.Now()
	event := Event{Name: name, Start: now, End: now, Data: data}
	c.events = append(c.events, event)
	c.handler(event)
}

// EmitSpan records an event covering a time span.
func (c *Collector) EmitSpan(name string, start time.Time, data map[string]interface{}) {
	if !c.Enabled() {
		return
	}
	end := time.Now()
	event := Event{Name: name, Start: start, End: end, Latency: end.Sub(start), Data: data}
	c.events = append(c.events, event)
	c.handler(event)
}

// Events returns everything collected so far.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	return c.events
}
