package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofhir/fhirpath"
	"github.com/gofhir/fhirpath/types"
)

// FHIRPathAdapter evaluates FHIRPath expressions against raw FHIR JSON.
// The profile store uses it to check invariants on fetched documents.
type FHIRPathAdapter struct {
	mu    sync.Mutex
	cache map[string]*fhirpath.Expression
}

// NewFHIRPathAdapter creates a new adapter.
func NewFHIRPathAdapter() *FHIRPathAdapter {
	return &FHIRPathAdapter{
		cache: make(map[string]*fhirpath.Expression),
	}
}

// Evaluate returns the FHIRPath truthiness of expression over resource.
// Empty collections are false, a single boolean is its value, and any
// other non-empty collection is true.
func (a *FHIRPathAdapter) Evaluate(_ context.Context, expression string, resource any) (bool, error) {
	raw, err := toJSON(resource)
	if err != nil {
		return false, fmt.Errorf("failed to convert resource to JSON: %w", err)
	}

	compiled, err := a.compile(expression)
	if err != nil {
		return false, fmt.Errorf("failed to compile FHIRPath expression '%s': %w", expression, err)
	}

	result, err := compiled.Evaluate(raw)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate FHIRPath expression '%s': %w", expression, err)
	}
	return truthy(result), nil
}

// Require fails unless expression holds for resource.
func (a *FHIRPathAdapter) Require(ctx context.Context, expression string, resource any) error {
	ok, err := a.Evaluate(ctx, expression, resource)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("invariant not satisfied: %s", expression)
	}
	return nil
}

func (a *FHIRPathAdapter) compile(expression string) (*fhirpath.Expression, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if compiled, ok := a.cache[expression]; ok {
		return compiled, nil
	}
	compiled, err := fhirpath.Compile(expression)
	if err != nil {
		return nil, err
	}
	a.cache[expression] = compiled
	return compiled, nil
}

func toJSON(resource any) ([]byte, error) {
	switch v := resource.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

func truthy(result types.Collection) bool {
	if len(result) == 0 {
		return false
	}
	if len(result) == 1 {
		if b, ok := result[0].(types.Boolean); ok {
			return b.Bool()
		}
	}
	return true
}
