package harness

import (
	"fmt"
	"strings"
)

// TraceEvent records the outcome of one flow step.
type TraceEvent struct {
	// Step is the 1-based step label; nested parallel steps are "3.1".
	Step string `json:"step"`

	// Op is merge, cancel, resolve, reset_caches or parallel.
	Op string `json:"op"`

	// Target identifies what the step acted on, e.g. "nid=42".
	Target string `json:"target"`

	// Outcome is "ok", "nid=<n>" or "error=<CODE>".
	Outcome string `json:"outcome"`

	// Seq is the write sequence observed after a top-level step.
	Seq    int64 `json:"seq,omitempty"`
	HasSeq bool  `json:"-"`
}

func (e TraceEvent) String() string {
	line := fmt.Sprintf("step %s %s %s %s", e.Step, e.Op, e.Target, e.Outcome)
	if e.HasSeq {
		line += fmt.Sprintf(" seq=%d", e.Seq)
	}
	return line
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step matched its expectation
	// and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, nested parallel steps following
	// their parent in declaration order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Chronicles holds the final dump of every stored chronicle, in nid
	// order, as "chronicle <nid>" followed by its dump.
	Chronicles []string `json:"chronicles,omitempty"`
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

// AddTrace appends a step event.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}

// TraceText renders the trace one event per line.
func (r *Result) TraceText() string {
	var sb strings.Builder
	for _, e := range r.Trace {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
