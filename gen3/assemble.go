package gen3

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofhir/gen3dict/config"
	"github.com/gofhir/gen3dict/walker"
)

// Assembler builds a complete node definition for one configured resource.
type Assembler struct {
	normalizer *Normalizer
}

// NewAssembler creates an Assembler delegating property work to n.
func NewAssembler(n *Normalizer) *Assembler {
	return &Assembler{normalizer: n}
}

// Assemble selects the configured paths from table, fills the scaffold and
// normalizes the selected properties.
func (a *Assembler) Assemble(ctx context.Context, resource string, cfg *config.Resource, table *walker.Table) (*Schema, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s: no resource configuration", ErrConfig, resource)
	}
	selected, err := Select(resource, cfg.Properties.Include, table)
	if err != nil {
		return nil, err
	}

	s := NewSchema(resource)
	if root := table.Root(""); root != nil && root.Description != "" {
		s.SetDescription(root.Description)
	} else {
		s.SetDescription(fmt.Sprintf("//TODO %s description goes here.", resource))
	}
	s.SetCategory(cfg.Category)
	s.SetLinks(cfg.Links)
	s.AddType(resource)

	if err := a.normalizer.Normalize(ctx, s, selected, table, cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Select returns the include paths in configured order. Every path must name
// a walked property; the error lists all that do not.
func Select(resource string, include []string, table *walker.Table) ([]string, error) {
	selected := make([]string, 0, len(include))
	seen := make(map[string]bool, len(include))
	var missing []string
	for _, path := range include {
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		if !table.Has(path) {
			missing = append(missing, path)
			continue
		}
		selected = append(selected, path)
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Resource: resource, Missing: missing, Available: table.Paths()}
	}
	return selected, nil
}
