package gen3dict

import "strings"

// IssueSeverity represents the severity of a generation issue.
type IssueSeverity string

const (
	// SeverityFatal indicates the run could not continue.
	SeverityFatal IssueSeverity = "fatal"
	// SeverityError indicates a resource produced no schema.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a schema was produced with a degraded property.
	SeverityWarning IssueSeverity = "warning"
	// SeverityInformation indicates informational feedback.
	SeverityInformation IssueSeverity = "information"
)

// IssueType classifies a generation issue.
type IssueType string

const (
	// IssueTypeInvalid indicates the resource configuration is unusable.
	IssueTypeInvalid IssueType = "invalid"
	// IssueTypeStructure indicates a profile whose elements cannot be walked.
	IssueTypeStructure IssueType = "structure"
	// IssueTypeNotFound indicates a profile or value set was not found.
	IssueTypeNotFound IssueType = "not-found"
	// IssueTypeCodeInvalid indicates a binding that yielded no enumeration.
	IssueTypeCodeInvalid IssueType = "code-invalid"
	// IssueTypeTooCostly indicates a value set too large to enumerate.
	IssueTypeTooCostly IssueType = "too-costly"
	// IssueTypeProcessing indicates a storage or serialisation failure.
	IssueTypeProcessing IssueType = "processing"
	// IssueTypeTimeout indicates the run was cancelled or timed out.
	IssueTypeTimeout IssueType = "timeout"
	// IssueTypeInformational indicates informational content.
	IssueTypeInformational IssueType = "informational"
)

// Issue represents a single generation issue.
type Issue struct {
	// Severity of the issue (error, warning, information)
	Severity IssueSeverity `json:"severity"`

	// Code identifying the type of issue
	Code IssueType `json:"code"`

	// Diagnostics contains human-readable details about the issue
	Diagnostics string `json:"diagnostics,omitempty"`

	// Resource is the configured resource the issue belongs to
	Resource string `json:"resource,omitempty"`

	// Expression contains the property paths involved
	Expression []string `json:"expression,omitempty"`

	// Stage is the generation stage that reported the issue
	Stage string `json:"stage,omitempty"`
}

// IsError returns true if this is an error or fatal issue.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError || i.Severity == SeverityFatal
}

// IsWarning returns true if this is a warning.
func (i Issue) IsWarning() bool {
	return i.Severity == SeverityWarning
}

// String returns a human-readable representation of the issue.
func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(string(i.Severity))
	if i.Resource != "" {
		b.WriteString(" [")
		b.WriteString(i.Resource)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(i.Diagnostics)
	if len(i.Expression) > 0 {
		b.WriteString(" at ")
		b.WriteString(i.Expression[0])
	}
	return b.String()
}

// IssueBuilder provides a fluent API for building issues.
type IssueBuilder struct {
	issue Issue
}

// NewIssue creates a new IssueBuilder.
func NewIssue(severity IssueSeverity, code IssueType) *IssueBuilder {
	return &IssueBuilder{
		issue: Issue{
			Severity: severity,
			Code:     code,
		},
	}
}

// Error creates an error issue.
func Error(code IssueType) *IssueBuilder {
	return NewIssue(SeverityError, code)
}

// Warning creates a warning issue.
func Warning(code IssueType) *IssueBuilder {
	return NewIssue(SeverityWarning, code)
}

// Info creates an informational issue.
func Info(code IssueType) *IssueBuilder {
	return NewIssue(SeverityInformation, code)
}

// Diagnostics sets the diagnostic message.
func (b *IssueBuilder) Diagnostics(msg string) *IssueBuilder {
	b.issue.Diagnostics = msg
	return b
}

// For sets the resource name.
func (b *IssueBuilder) For(resource string) *IssueBuilder {
	b.issue.Resource = resource
	return b
}

// At sets the expression path.
func (b *IssueBuilder) At(path string) *IssueBuilder {
	b.issue.Expression = []string{path}
	return b
}

// AtPaths sets multiple expression paths.
func (b *IssueBuilder) AtPaths(paths ...string) *IssueBuilder {
	b.issue.Expression = paths
	return b
}

// Stage sets the generation stage.
func (b *IssueBuilder) Stage(stage string) *IssueBuilder {
	b.issue.Stage = stage
	return b
}

// Build returns the constructed issue.
func (b *IssueBuilder) Build() Issue {
	return b.issue
}
