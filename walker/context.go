package walker

import (
	"slices"

	"github.com/gofhir/gen3dict/service"
)

// scope is one level of the walk. Levels form the ancestor chain used to
// look up element definitions, innermost first.
type scope struct {
	index  *ElementIndex
	parent *scope
}

func (s *scope) root() string {
	return s.index.Root()
}

// lookup finds the definition of p by trying every strategy against each
// level of the chain, innermost level first.
func (s *scope) lookup(p *Property, strategies []MatchStrategy) (*service.ElementDefinition, string) {
	for sc := s; sc != nil; sc = sc.parent {
		for _, strategy := range strategies {
			id := strategy.ID(sc.root(), p)
			if id == "" {
				continue
			}
			if elem := sc.index.Get(id); elem != nil {
				return elem, strategy.Name
			}
		}
	}
	return nil, ""
}

// walkState is the mutable state of one Walk call.
type walkState struct {
	// chain holds the type keys of the levels being expanded, outermost
	// first. Re-entering a key on the chain would recurse forever.
	chain []string

	profilesResolved int
	recursionStops   int
}

func (s *walkState) onChain(key string) bool {
	return slices.Contains(s.chain, key)
}

func (s *walkState) push(key string) {
	s.chain = append(s.chain, key)
}

func (s *walkState) pop() {
	s.chain = s.chain[:len(s.chain)-1]
}
