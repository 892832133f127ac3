package walker

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/gofhir/gen3dict/service"
)

// Stats counts walker activity for one Walk call.
type Stats struct {
	Properties       int
	ProfilesResolved int
	RecursionStops   int
}

// Walker expands a profile into a Table of property paths, following
// embedded structures and referenced type profiles.
type Walker struct {
	profiles   service.ProfileResolver
	strategies []MatchStrategy
	log        *logger.Logger
	lastStats  Stats
}

// Option configures the Walker.
type Option func(*Walker)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(w *Walker) {
		w.log = l
	}
}

// WithMatchStrategies replaces the definition match strategies.
func WithMatchStrategies(strategies ...MatchStrategy) Option {
	return func(w *Walker) {
		w.strategies = strategies
	}
}

// New creates a walker resolving type profiles through profiles.
func New(profiles service.ProfileResolver, opts ...Option) *Walker {
	w := &Walker{
		profiles:   profiles,
		strategies: DefaultMatchStrategies,
		log:        logger.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk resolves the profile named rootType (or located at url) and walks it.
func (w *Walker) Walk(ctx context.Context, rootType, url string) (*Table, error) {
	sd, err := w.profiles.ResolveProfile(ctx, rootType, url)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", firstNonEmpty(rootType, url), err)
	}
	return w.WalkProfile(ctx, sd)
}

// WalkProfile walks an already resolved profile.
func (w *Walker) WalkProfile(ctx context.Context, sd *service.StructureDefinition) (*Table, error) {
	if sd == nil {
		return nil, fmt.Errorf("%w: nil profile", ErrStructural)
	}
	state := &walkState{}
	state.push(sd.RootName())
	t, err := w.walkProfile(ctx, state, sd, nil)
	if err != nil {
		return nil, err
	}
	w.lastStats = Stats{
		Properties:       len(t.Paths()),
		ProfilesResolved: state.profilesResolved,
		RecursionStops:   state.recursionStops,
	}
	return t, nil
}

// Stats returns the counters of the most recent walk.
func (w *Walker) Stats() Stats {
	return w.lastStats
}

// walkProfile walks a fetched profile as a fresh level.
func (w *Walker) walkProfile(ctx context.Context, state *walkState, sd *service.StructureDefinition, parent *scope) (*Table, error) {
	index, err := BuildElementIndex(sd.RootName(), sd.Snapshot)
	if err != nil {
		return nil, err
	}
	t := NewTable()
	t.setRoot("", &Root{ID: sd.ID, Description: sd.Description, Type: sd.Type, Name: sd.Name})
	if err := w.walkLevel(ctx, state, &scope{index: index, parent: parent}, t); err != nil {
		return nil, err
	}
	return t, nil
}

// walkLevel adds every declared property of the level and its subtree.
func (w *Walker) walkLevel(ctx context.Context, state *walkState, sc *scope, t *Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, child := range sc.index.Children() {
		for _, p := range expandElement(child) {
			if service.IsSkippedType(p.Type) {
				continue
			}
			elem, strategy := sc.lookup(p, w.strategies)
			if elem == nil {
				return fmt.Errorf("%w: no definition for %s.%s", ErrStructural, sc.root(), p.Name)
			}
			if strategy != "direct" {
				w.log.Debug("matched %s.%s by %s strategy to %s", sc.root(), p.Name, strategy, elem.ID)
			}
			p.Element = elem
			p.IsList = elem.IsList()
			p.Required = elem.IsRequired()
			if !t.add(p.Name, p) {
				w.log.Debug("duplicate property %s.%s ignored", sc.root(), p.Name)
				continue
			}

			sub, err := w.follow(ctx, state, sc, p)
			if err != nil {
				return err
			}
			t.merge(p.Name, sub)
		}
	}
	return nil
}

// follow expands the subtree of p according to its kind.
func (w *Walker) follow(ctx context.Context, state *walkState, sc *scope, p *Property) (*Table, error) {
	if service.IsLeafType(p.Type) {
		return nil, nil
	}
	switch p.Kind {
	case service.KindResource:
		if state.onChain(p.Type) {
			state.recursionStops++
			w.log.Warn("recursion detected: %s.%s of type %s", sc.root(), p.Name, p.Type)
			return nil, nil
		}
		sd, err := w.profiles.ResolveProfile(ctx, p.Type, "")
		if errors.Is(err, service.ErrNotFound) {
			w.log.Debug("no profile for %s %s, treating as embedded in %s", p.Name, p.Type, sc.root())
			return w.walkEmbedded(ctx, state, sc, p)
		}
		if err != nil {
			return nil, err
		}
		state.profilesResolved++
		state.push(p.Type)
		defer state.pop()
		return w.walkProfile(ctx, state, sd, sc)
	case service.KindComposite:
		return w.walkEmbedded(ctx, state, sc, p)
	default:
		return nil, nil
	}
}

// walkEmbedded expands a structure described inside the current level's
// element list, following a content reference if the structure has one.
func (w *Walker) walkEmbedded(ctx context.Context, state *walkState, sc *scope, p *Property) (*Table, error) {
	elements := SliceElements(sc.index.Elements(), p.Element.ID)
	if len(elements) == 0 {
		return nil, nil
	}
	levelRoot := p.Element.ID
	rootElem := elements[0]

	if rootElem.ContentReference != "" {
		target, deref, err := w.dereference(ctx, sc, rootElem.ContentReference)
		if err != nil {
			return nil, err
		}
		if deref == nil {
			state.recursionStops++
			return nil, nil
		}
		levelRoot, elements, rootElem = target, deref, deref[0]
	}

	if state.onChain(levelRoot) {
		state.recursionStops++
		w.log.Warn("recursion detected: %s.%s at %s", sc.root(), p.Name, levelRoot)
		return nil, nil
	}
	if len(elements) == 1 {
		return nil, nil
	}

	index, err := BuildElementIndex(levelRoot, elements)
	if err != nil {
		return nil, err
	}
	state.push(levelRoot)
	defer state.pop()

	t := NewTable()
	t.setRoot("", &Root{ID: levelRoot, Description: rootElem.Definition, Type: levelRoot})
	if err := w.walkLevel(ctx, state, &scope{index: index, parent: sc}, t); err != nil {
		return nil, err
	}
	return t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
