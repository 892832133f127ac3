package service

import (
	"context"
	"fmt"
)

// ErrNoConcepts is returned when a code system carries no usable concept list.
var ErrNoConcepts = fmt.Errorf("%w: no concepts in code system", ErrNotFound)

// Concept is one coded value of a code system or inline value set.
type Concept struct {
	Code    string
	Display string
}

// Concepts is the result of resolving a value set.
type Concepts struct {
	// ValueSet is the requested URL with any |version suffix removed.
	ValueSet string
	// Source is the full URL of the entry the concepts were read from.
	Source string
	// Concepts is empty when Truncated is set.
	Concepts []Concept
	// Truncated marks a concept list larger than the resolver's cap.
	Truncated bool
	// Total is the concept count before truncation.
	Total int
}

// Codes returns the concept codes in declaration order.
func (c *Concepts) Codes() []string {
	codes := make([]string, 0, len(c.Concepts))
	for _, concept := range c.Concepts {
		codes = append(codes, concept.Code)
	}
	return codes
}

// ValueSetResolver resolves a canonical value set URL to its concepts.
// A miss returns ErrNotFound (or ErrNoConcepts, which wraps it).
type ValueSetResolver interface {
	ResolveValueSet(ctx context.Context, url string) (*Concepts, error)
}
