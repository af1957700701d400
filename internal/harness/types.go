package harness

// TraceEvent is one step of a scenario run.
type TraceEvent struct {
	Step   int    `json:"step"` // -1 for the deployment block
	Type   string `json:"type"`
	Height uint64 `json:"height"`

	// Receipts are the canonical receipts of a mined block.
	Receipts []map[string]any `json:"receipts,omitempty"`

	// Value is the result of a read-only call.
	Value string `json:"value,omitempty"`

	// Fault is the fault code of a failed read-only call.
	Fault string `json:"fault,omitempty"`

	// Diagnostics are the printed check-checker diagnostics.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Digest is the state digest after the last step.
	Digest string `json:"digest"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
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

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
