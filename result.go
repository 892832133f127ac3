package gen3dict

import (
	"sync"
)

// Outcome records what happened to one configured resource.
type Outcome struct {
	// Resource is the configured resource name
	Resource string `json:"resource"`

	// File is the location the schema was written to
	File string `json:"file,omitempty"`

	// Digest is the hex highwayhash of the serialised schema
	Digest string `json:"digest,omitempty"`

	// Properties is the number of emitted properties
	Properties int `json:"properties,omitempty"`

	// Written is false when the schema failed or was unchanged on disk
	Written bool `json:"written"`

	// Unchanged is true when an identical file was already present
	Unchanged bool `json:"unchanged,omitempty"`

	// Failed is true when no schema was produced
	Failed bool `json:"failed,omitempty"`
}

// Result contains the outcome of a generation run.
// All methods are safe for concurrent use.
type Result struct {
	// Valid is true if no errors were recorded (warnings are allowed)
	Valid bool `json:"valid"`

	// Outcomes holds one entry per configured resource, in run order
	Outcomes []Outcome `json:"outcomes,omitempty"`

	// Issues contains all issues found
	Issues []Issue `json:"issues,omitempty"`

	// Index is the location of the aggregate document, if written
	Index string `json:"index,omitempty"`

	mu sync.Mutex
}

// NewResult creates a new result.
func NewResult() *Result {
	return &Result{
		Valid:  true,
		Issues: make([]Issue, 0, 8),
	}
}

// AddOutcome records the outcome of one resource.
func (r *Result) AddOutcome(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Outcomes = append(r.Outcomes, o)
	if o.Failed {
		r.Valid = false
	}
}

// AddIssue adds an issue to the result.
func (r *Result) AddIssue(issue Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Issues = append(r.Issues, issue)
	if issue.IsError() {
		r.Valid = false
	}
}

// AddIssues adds multiple issues to the result.
func (r *Result) AddIssues(issues []Issue) {
	if len(issues) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.Issues = append(r.Issues, issues...)
	for _, issue := range issues {
		if issue.IsError() {
			r.Valid = false
			break
		}
	}
}

// AddError is a convenience method to add an error issue.
func (r *Result) AddError(code IssueType, resource, diagnostics string) {
	r.AddIssue(Issue{
		Severity:    SeverityError,
		Code:        code,
		Resource:    resource,
		Diagnostics: diagnostics,
	})
}

// AddWarning is a convenience method to add a warning issue.
func (r *Result) AddWarning(code IssueType, resource, diagnostics, path string) {
	r.AddIssue(Issue{
		Severity:    SeverityWarning,
		Code:        code,
		Resource:    resource,
		Diagnostics: diagnostics,
		Expression:  []string{path},
	})
}

// HasErrors returns true if there are any error or fatal issues.
func (r *Result) HasErrors() bool {
	return r.ErrorCount() > 0
}

// HasWarnings returns true if there are any warning issues.
func (r *Result) HasWarnings() bool {
	return r.WarningCount() > 0
}

// ErrorCount returns the number of error and fatal issues.
func (r *Result) ErrorCount() int {
	return len(r.filter(Issue.IsError))
}

// WarningCount returns the number of warning issues.
func (r *Result) WarningCount() int {
	return len(r.filter(Issue.IsWarning))
}

// Errors returns all error and fatal issues.
func (r *Result) Errors() []Issue {
	return r.filter(Issue.IsError)
}

// Warnings returns all warning issues.
func (r *Result) Warnings() []Issue {
	return r.filter(Issue.IsWarning)
}

func (r *Result) filter(keep func(Issue) bool) []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Issue
	for _, issue := range r.Issues {
		if keep(issue) {
			out = append(out, issue)
		}
	}
	return out
}

// Failed returns the names of the resources that produced no schema.
func (r *Result) Failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, o := range r.Outcomes {
		if o.Failed {
			names = append(names, o.Resource)
		}
	}
	return names
}

// Written returns the files written by the run.
func (r *Result) Written() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var files []string
	for _, o := range r.Outcomes {
		if o.Written {
			files = append(files, o.File)
		}
	}
	return files
}

// Merge combines another result into this one.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}

	other.mu.Lock()
	issues := make([]Issue, len(other.Issues))
	copy(issues, other.Issues)
	outcomes := make([]Outcome, len(other.Outcomes))
	copy(outcomes, other.Outcomes)
	other.mu.Unlock()

	for _, o := range outcomes {
		r.AddOutcome(o)
	}
	r.AddIssues(issues)
}

// Clone creates a copy of the result.
func (r *Result) Clone() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := &Result{
		Valid:    r.Valid,
		Issues:   make([]Issue, len(r.Issues)),
		Outcomes: make([]Outcome, len(r.Outcomes)),
		Index:    r.Index,
	}
	copy(clone.Issues, r.Issues)
	copy(clone.Outcomes, r.Outcomes)
	return clone
}
