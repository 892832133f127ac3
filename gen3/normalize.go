package gen3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofhir/gen3dict/config"
	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/gofhir/gen3dict/service"
	"github.com/gofhir/gen3dict/walker"
)

// DefaultMaxConcepts matches the value-set resolver's default cap and is
// only used to word the truncation comment.
const DefaultMaxConcepts = 1000

// outputKeys are the descriptor keys kept in emitted properties, besides
// comment* diagnostics.
var outputKeys = map[string]bool{
	"description": true,
	"type":        true,
	"format":      true,
	"$ref":        true,
	"term":        true,
	"enum":        true,
	"oneOf":       true,
}

// Property names that never receive vocabulary treatment.
var noVocabulary = map[string]bool{"type": true, "subtype": true}

// Normalizer converts walked properties into Gen3 property descriptors.
type Normalizer struct {
	valueSets   service.ValueSetResolver
	log         *logger.Logger
	maxConcepts int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(n *Normalizer) {
		n.log = l
	}
}

// WithMaxConcepts sets the concept cap quoted in truncation comments.
func WithMaxConcepts(max int) Option {
	return func(n *Normalizer) {
		if max > 0 {
			n.maxConcepts = max
		}
	}
}

// NewNormalizer creates a Normalizer. A nil resolver treats every binding as
// a missing code set.
func NewNormalizer(valueSets service.ValueSetResolver, opts ...Option) *Normalizer {
	n := &Normalizer{
		valueSets:   valueSets,
		log:         logger.Default(),
		maxConcepts: DefaultMaxConcepts,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize adds a descriptor for every selected path to s, then flattens
// property and required names and strips bookkeeping keys.
// cfg may be nil.
func (n *Normalizer) Normalize(ctx context.Context, s *Schema, selected []string, table *walker.Table, cfg *config.Resource) error {
	props := s.Properties()
	required := s.Required()
	normalized := make([]string, 0, len(selected))

	for _, name := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := table.Property(name)
		if p == nil {
			return &ConfigError{Resource: s.Name, Missing: []string{name}, Available: table.Paths()}
		}
		if _, exists := props.Get(name); exists {
			n.log.Warn("%s: %s replaces the base property of the same name", s.Name, name)
		}
		if isRequired(name, p, table) {
			required = append(required, name)
		}
		d, err := n.describe(ctx, s, name, p, table, cfg)
		if err != nil {
			return err
		}
		props.Set(name, d)
		normalized = append(normalized, FlatName(name))
	}
	s.setRequired(required)

	if err := flatten(s); err != nil {
		return err
	}
	cleanup(s.Properties(), normalized)
	return nil
}

func (n *Normalizer) describe(ctx context.Context, s *Schema, name string, p *walker.Property, table *walker.Table, cfg *config.Resource) (*Object, error) {
	description := ""
	if p.Element != nil {
		description = p.Element.Definition
	}
	if strings.Contains(name, ".") {
		if root := table.Root(walker.FirstSegment(name)); root != nil && root.Description != "" {
			description = root.Description + " " + description
		} else {
			n.log.Warn("%s: no description for the level of %s", s.Name, name)
		}
	}

	d := NewObject("type", p.Type, "description", description)
	if !MapType(p.Type, d) {
		n.log.Info("%s: no mapping for %s<%s>, using string; consider including child paths %v",
			s.Name, name, p.Type, childPaths(table, name))
		d.Set("type", "string")
	}

	system, code := binding(p)
	if cfg != nil {
		if override := cfg.Enums[name]; override != "" {
			n.log.Info("%s: using configured value set %s for %s", s.Name, override, name)
			system = override
		}
	}
	if system == "" || noVocabulary[name] {
		return d, nil
	}

	description = stringAt(d, "description") + "  Vocabulary from " + system
	if code != "" {
		d.Set("enum", []string{code})
	} else if err := n.enumerate(ctx, s, name, system, d); err != nil {
		return nil, err
	}
	d.Set("term", NewObject(
		"description", description,
		"termDef", NewObject(
			"term", name,
			"source", "fhir",
			"cde_id", name,
			"cde_version", nil,
			"term_url", system,
		),
	))
	d.Delete("description")
	return d, nil
}

// enumerate sets d's enum from the value set, or degrades d to a plain
// string with a comment when the value set cannot be listed.
func (n *Normalizer) enumerate(ctx context.Context, s *Schema, name, system string, d *Object) error {
	var concepts *service.Concepts
	err := service.ErrNotFound
	if n.valueSets != nil {
		concepts, err = n.valueSets.ResolveValueSet(ctx, system)
	}

	var comment string
	switch {
	case errors.Is(err, service.ErrNoConcepts):
		n.log.Error("%s: no concepts found in code set %s", s.Name, system)
		comment = "No-concepts-found-in-codeset-" + system
	case errors.Is(err, service.ErrNotFound):
		n.log.Warn("%s: no code set found for %s", s.Name, system)
		comment = "No-codeset-found-for-" + system
	case err != nil:
		return fmt.Errorf("%s: resolve value set %s for %s: %w", s.Name, system, name, err)
	case concepts.Truncated:
		n.log.Warn("%s: more than %d concepts in code set %s", s.Name, n.maxConcepts, system)
		comment = fmt.Sprintf("More-than-%d-concepts-%s", n.maxConcepts, system)
	default:
		d.Set("enum", concepts.Codes())
		return nil
	}

	d.Set("comment_enum", comment)
	d.Set("type", "string")
	s.Degraded = append(s.Degraded, Degradation{Property: FlatName(name), System: system, Comment: comment})
	return nil
}

// binding returns the vocabulary of p: the bound value set and, when the
// element pins a coded value, that code. A pinned coding's system replaces
// the binding; a bare code keeps it. A bare code on an unbound element has
// no vocabulary to report.
func binding(p *walker.Property) (system, code string) {
	system = p.Binding()
	if p.Element == nil || p.Element.Pattern == nil || p.Element.Pattern.Code == "" {
		return system, ""
	}
	if p.Element.Pattern.System != "" {
		system = p.Element.Pattern.System
	}
	if system == "" {
		return "", ""
	}
	return system, p.Element.Pattern.Code
}

// isRequired reports whether the element at path, or its immediate parent,
// has a non-zero minimum cardinality.
func isRequired(path string, p *walker.Property, table *walker.Table) bool {
	if p.Required {
		return true
	}
	parent := walker.ParentPath(path)
	if parent == "" {
		return false
	}
	pp := table.Property(parent)
	return pp != nil && pp.Required
}

func childPaths(table *walker.Table, path string) []string {
	var out []string
	for _, p := range table.Paths() {
		if strings.HasPrefix(p, path+".") {
			out = append(out, p)
		}
	}
	return out
}

// cleanup coerces leftover type markers on every property and strips
// bookkeeping keys from the normalized ones.
func cleanup(props *Object, normalized []string) {
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		d, ok := pair.Value.(*Object)
		if !ok {
			continue
		}
		switch stringAt(d, "type") {
		case "uri", "url", "canonical":
			d.Set("type", "string")
		case "code":
			d.Delete("type")
			d.Delete("format")
		}
	}
	for _, name := range normalized {
		d := child(props, name)
		if d == nil {
			continue
		}
		for _, k := range Keys(d) {
			if !outputKeys[k] && !strings.HasPrefix(k, "comment") {
				d.Delete(k)
			}
		}
	}
}
