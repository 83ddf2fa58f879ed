package harness

import (
	"github.com/roach88/vfpquery/internal/ir"
)

// Rendered is the outcome of compiling a document for one dialect.
type Rendered struct {
	Dialect string `json:"dialect"`

	// Text is the statement text, empty when compilation failed.
	Text string `json:"text,omitempty"`

	// Params names the statement's parameter slots in order.
	Params []string `json:"params,omitempty"`

	// Fingerprint identifies the plan.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Error is the failure code, Message its text.
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Outcome is the result of one run.
type Outcome struct {
	ExecutionID string     `json:"execution_id,omitempty"`
	Value       ir.IRValue `json:"value,omitempty"`
	Rows        int        `json:"rows"`
	Error       string     `json:"error,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// Result is the outcome of running a document.
type Result struct {
	// Name is the document name.
	Name string `json:"name"`

	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	// Statements holds one entry per dialect, sorted by dialect name.
	Statements []Rendered `json:"statements"`

	// Runs holds one entry per run, in document order.
	Runs []Outcome `json:"runs,omitempty"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:       name,
		Pass:       true,
		Statements: []Rendered{},
		Errors:     []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Statement returns the rendering for dialect.
func (r *Result) Statement(dialect string) (Rendered, bool) {
	for _, s := range r.Statements {
		if s.Dialect == dialect {
			return s, true
		}
	}
	return Rendered{}, false
}
