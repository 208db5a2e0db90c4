package harness

import (
	"github.com/roach88/roomsync/internal/engine"
	"github.com/roach88/roomsync/internal/ledger"
)

// TraceEvent records the outcome of one flow step.
type TraceEvent struct {
	Step       int               `json:"step"`
	Actor      ledger.Identity   `json:"actor"`
	Action     string            `json:"action"`
	Room       string            `json:"room,omitempty"`
	Path       ledger.RecordPath `json:"path,omitempty"`
	Slot       *uint32           `json:"slot,omitempty"`
	Collisions int               `json:"collisions,omitempty"`
	Published  *bool             `json:"published,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is each participant's room list after the final sync.
	State map[ledger.Identity]engine.Snapshot `json:"-"`

	// Rooms maps room aliases to their paths.
	Rooms map[string]ledger.RecordPath `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[ledger.Identity]engine.Snapshot),
		Rooms:  make(map[string]ledger.RecordPath),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
