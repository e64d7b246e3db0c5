package harness

import "github.com/roach88/relbridge/internal/optree"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Explain renders the converted trees. Empty when conversion failed.
	Explain string `json:"explain,omitempty"`

	// Fingerprint identifies the input plan.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Diff describes how the round-tripped plan differs from the input.
	Diff string `json:"diff,omitempty"`

	// ConvertError is the conversion failure, if any.
	ConvertError string `json:"convert_error,omitempty"`

	// ErrorCode is the code of ConvertError, when it has one.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains assertion failures.
	Errors []string `json:"errors,omitempty"`

	trees []optree.Root
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Trees returns the converted trees.
func (r *Result) Trees() []optree.Root { return r.trees }
