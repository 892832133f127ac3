package gen3

import (
	"sort"
	"strings"
)

// redundantSuffix is left behind when a primitive's value element is
// selected, e.g. valueQuantity.value.
const redundantSuffix = "_value"

// FlatName converts a dotted property path into a Gen3 property name.
// Example: "subject.reference" -> "subject_reference",
// "valueQuantity.value" -> "valueQuantity".
func FlatName(path string) string {
	name := strings.ReplaceAll(path, ".", "_")
	if trimmed, ok := strings.CutSuffix(name, redundantSuffix); ok && trimmed != "" {
		return trimmed
	}
	return name
}

// flatten renames every property of s and every required entry to its flat
// name, preserving order. Two source names that flatten to the same name is
// a configuration error.
func flatten(s *Schema) error {
	props := s.Properties()
	renamed := NewObject()
	sources := make(map[string][]string)
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		flat := FlatName(pair.Key)
		sources[flat] = append(sources[flat], pair.Key)
		renamed.Set(flat, pair.Value)
	}

	var collisions []string
	for _, names := range sources {
		if len(names) > 1 {
			collisions = append(collisions, names...)
		}
	}
	if len(collisions) > 0 {
		sort.Strings(collisions)
		return &ConfigError{Resource: s.Name, Collision: collisions}
	}
	s.Doc.Set("properties", renamed)

	seen := make(map[string]bool)
	required := make([]string, 0, len(s.Required()))
	for _, r := range s.Required() {
		flat := FlatName(r)
		if seen[flat] {
			continue
		}
		seen[flat] = true
		required = append(required, flat)
	}
	s.setRequired(required)
	return nil
}
