package harness

// Trace event types.
const (
	EventCall     = "call"
	EventNotify   = "notify"
	EventRedirect = "redirect"
	EventLogout   = "logout"
	EventStep     = "step"
)

// TraceEvent is one entry of a scenario trace. Only the fields of its type
// are set.
type TraceEvent struct {
	Type     string         `json:"type"`
	Step     string         `json:"step,omitempty"`
	Verb     string         `json:"verb,omitempty"`
	Resource string         `json:"resource,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Key      string         `json:"key,omitempty"`
	Level    string         `json:"level,omitempty"`
	Path     string         `json:"path,omitempty"`
	Outcome  string         `json:"outcome,omitempty"`
	Seq      int64          `json:"seq"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every step met its expectation and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace holds the recorded events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds step and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns the provider call events of the trace.
func (r *Result) Calls() []TraceEvent {
	var calls []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventCall {
			calls = append(calls, ev)
		}
	}
	return calls
}
