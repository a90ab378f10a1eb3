package harness

import (
	"github.com/roach88/relgraph/internal/engine"
	"github.com/roach88/relgraph/internal/ir"
)

// TraceEvent is one mutation event with the step that produced it.
type TraceEvent struct {
	Step       int          `json:"step"`
	Op         string       `json:"op"`
	RecordName string       `json:"recordName"`
	Type       ir.EventType `json:"type"`
	Record     ir.Record    `json:"record,omitempty"`
	OldRecord  ir.Record    `json:"oldRecord,omitempty"`
}

// Key renders the event as "type recordName".
func (e TraceEvent) Key() string {
	return string(e.Type) + " " + e.RecordName
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every event in statement order across all steps.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// Hooks holds field type hook results in call order.
	Hooks []engine.HookResult `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvents appends the events of one step to the trace.
func (r *Result) AddEvents(step int, op string, events []ir.MutationEvent) {
	for _, ev := range events {
		r.Trace = append(r.Trace, TraceEvent{
			Step:       step,
			Op:         op,
			RecordName: ev.RecordName,
			Type:       ev.Type,
			Record:     ev.Record,
			OldRecord:  ev.OldRecord,
		})
	}
}
