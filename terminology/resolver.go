package terminology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gofhir/fhir/r4"
	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/gofhir/gen3dict/service"
)

// DefaultMaxConcepts caps the size of an enumeration; larger concept lists
// are reported as truncated.
const DefaultMaxConcepts = 1000

// ResolverStats counts resolver outcomes for one run.
type ResolverStats struct {
	Resolved  int
	Misses    int
	Truncated int
}

// Resolver implements service.ValueSetResolver over a Store.
type Resolver struct {
	store       Store
	log         *logger.Logger
	maxConcepts int

	mu    sync.Mutex
	memo  map[string]memoEntry
	stats ResolverStats
}

type memoEntry struct {
	concepts *service.Concepts
	err      error
}

// ResolverOption configures the Resolver.
type ResolverOption func(*Resolver)

// WithMaxConcepts sets the truncation threshold.
func WithMaxConcepts(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxConcepts = n
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(log *logger.Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = log
	}
}

// NewResolver creates a resolver reading from store.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:       store,
		log:         logger.Default(),
		maxConcepts: DefaultMaxConcepts,
		memo:        make(map[string]memoEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveValueSet implements service.ValueSetResolver. Outcomes, including
// misses, are remembered for the lifetime of the resolver; store failures
// are not.
func (r *Resolver) ResolveValueSet(ctx context.Context, url string) (*service.Concepts, error) {
	key, _, _ := strings.Cut(url, "|")

	r.mu.Lock()
	if m, ok := r.memo[key]; ok {
		r.mu.Unlock()
		return m.concepts, m.err
	}
	r.mu.Unlock()

	concepts, err := r.resolve(ctx, key)
	if err != nil && !errors.Is(err, service.ErrNotFound) {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo[key] = memoEntry{concepts: concepts, err: err}
	switch {
	case err != nil:
		r.stats.Misses++
	case concepts.Truncated:
		r.stats.Truncated++
	default:
		r.stats.Resolved++
	}
	return concepts, err
}

// Stats returns the counters for this run.
func (r *Resolver) Stats() ResolverStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Resolver) resolve(ctx context.Context, key string) (*service.Concepts, error) {
	r.log.Debug("looking up %s", key)
	entry, err := r.lookup(ctx, key)
	if err != nil {
		r.log.Warn("did not find value set for %s", key)
		return nil, err
	}

	if entry.ResourceType == ResourceCodeSystem {
		concepts, err := codeSystemConcepts(entry)
		if err != nil {
			return nil, err
		}
		return r.result(key, entry.FullURL, toConcepts(concepts)), nil
	}

	var vs r4.ValueSet
	if err := json.Unmarshal(entry.Resource, &vs); err != nil {
		return nil, fmt.Errorf("value set %s: %w", entry.FullURL, err)
	}
	if vs.Compose == nil || len(vs.Compose.Include) == 0 {
		return nil, fmt.Errorf("%w: %s has no compose.include", service.ErrNoConcepts, key)
	}
	valueSetRefs := includeValueSets(entry.Resource)

	for i := range vs.Compose.Include {
		include := &vs.Compose.Include[i]
		if len(include.Concept) > 0 {
			return r.result(key, entry.FullURL, inlineConcepts(vs.Compose.Include)), nil
		}

		target := str(include.System)
		if target == "" && i < len(valueSetRefs) {
			target = valueSetRefs[i]
		}
		if target == "" {
			continue
		}
		r.log.Debug("found %s linking to %s", key, target)
		cs, err := r.store.GetByURL(ctx, target)
		if errors.Is(err, service.ErrNotFound) {
			r.log.Warn("did not find code system for %s", target)
			continue
		}
		if err != nil {
			return nil, err
		}

		concepts, err := codeSystemConcepts(cs)
		if err != nil {
			r.log.Warn("no concepts found in %s", target)
			return nil, err
		}
		if seed := filterSeed(include.Filter); len(seed) > 0 {
			concepts = filterClosure(concepts, seed)
		}
		return r.result(key, cs.FullURL, toConcepts(concepts)), nil
	}
	return nil, fmt.Errorf("%w: no code system for %s", service.ErrNotFound, key)
}

func (r *Resolver) lookup(ctx context.Context, key string) (*Entry, error) {
	entry, err := r.store.Get(ctx, key)
	if errors.Is(err, service.ErrNotFound) {
		return r.store.GetByURL(ctx, key)
	}
	return entry, err
}

func (r *Resolver) result(key, source string, concepts []service.Concept) *service.Concepts {
	c := &service.Concepts{ValueSet: key, Source: source, Total: len(concepts)}
	if len(concepts) > r.maxConcepts {
		r.log.Warn("more than %d concepts in %s", r.maxConcepts, key)
		c.Truncated = true
		return c
	}
	c.Concepts = concepts
	return c
}

// codedConcept is a code system concept with the codes its properties
// point at.
type codedConcept struct {
	code       string
	display    string
	properties []string
}

// codeSystemConcepts flattens the concept hierarchy of a CodeSystem entry.
func codeSystemConcepts(entry *Entry) ([]codedConcept, error) {
	if entry.ResourceType != ResourceCodeSystem {
		return nil, fmt.Errorf("%w: %s is a %s", service.ErrNoConcepts, entry.FullURL, entry.ResourceType)
	}
	var cs r4.CodeSystem
	if err := json.Unmarshal(entry.Resource, &cs); err != nil {
		return nil, fmt.Errorf("code system %s: %w", entry.FullURL, err)
	}
	var out []codedConcept
	var walk func([]r4.CodeSystemConcept)
	walk = func(concepts []r4.CodeSystemConcept) {
		for i := range concepts {
			c := &concepts[i]
			if c.Code == nil {
				continue
			}
			cc := codedConcept{code: *c.Code, display: str(c.Display)}
			for _, p := range c.Property {
				if p.ValueCode != nil {
					cc.properties = append(cc.properties, *p.ValueCode)
				}
			}
			out = append(out, cc)
			walk(c.Concept)
		}
	}
	walk(cs.Concept)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", service.ErrNoConcepts, entry.FullURL)
	}
	return out, nil
}

func inlineConcepts(includes []r4.ValueSetComposeInclude) []service.Concept {
	var out []service.Concept
	for i := range includes {
		for _, c := range includes[i].Concept {
			if c.Code == nil {
				continue
			}
			out = append(out, service.Concept{Code: *c.Code, Display: str(c.Display)})
		}
	}
	return out
}

func toConcepts(concepts []codedConcept) []service.Concept {
	out := make([]service.Concept, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, service.Concept{Code: c.code, Display: c.display})
	}
	return out
}

// filterSeed returns the value of the first filter; only that value seeds
// the closure.
func filterSeed(filters []r4.ValueSetComposeIncludeFilter) []string {
	for _, f := range filters {
		if f.Value != nil && *f.Value != "" {
			return []string{*f.Value}
		}
	}
	return nil
}

// filterClosure selects the concepts linked to seed by property values.
// The first pass reads a snapshot of the seed: a seed concept adds the
// codes its properties name, and a concept naming a seed code adds itself.
// The second pass only reads the enlarged set. Chains are therefore
// followed one level deep, not to a fixed point.
func filterClosure(concepts []codedConcept, seed []string) []codedConcept {
	snapshot := make(map[string]bool, len(seed))
	included := make(map[string]bool, len(seed))
	for _, code := range seed {
		snapshot[code] = true
		included[code] = true
	}

	for _, c := range concepts {
		if snapshot[c.code] {
			for _, p := range c.properties {
				included[p] = true
			}
		}
		for _, p := range c.properties {
			if snapshot[p] {
				included[c.code] = true
			}
		}
	}

	var out []codedConcept
	for _, c := range concepts {
		if included[c.code] {
			out = append(out, c)
			continue
		}
		for _, p := range c.properties {
			if included[p] {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// includeValueSets reads compose.include[].valueSet, which may be a single
// canonical or a list of them, and returns the first canonical per include.
func includeValueSets(raw json.RawMessage) []string {
	var probe struct {
		Compose struct {
			Include []struct {
				ValueSet json.RawMessage `json:"valueSet"`
			} `json:"include"`
		} `json:"compose"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil
	}
	out := make([]string, len(probe.Compose.Include))
	for i, inc := range probe.Compose.Include {
		if len(inc.ValueSet) == 0 {
			continue
		}
		var one string
		if err := json.Unmarshal(inc.ValueSet, &one); err == nil {
			out[i] = one
			continue
		}
		var many []string
		if err := json.Unmarshal(inc.ValueSet, &many); err == nil && len(many) > 0 {
			out[i] = many[0]
		}
	}
	return out
}

// Verify interface compliance
var _ service.ValueSetResolver = (*Resolver)(nil)
