package htan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/viant/afs"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrUnknownNode is returned when an @id is not part of the model graph.
var ErrUnknownNode = errors.New("unknown node")

// refs holds the @id values of a JSON-LD reference property, which may be
// a single {"@id": ...} object or a list of them.
type refs []string

func (r *refs) UnmarshalJSON(data []byte) error {
	type ref struct {
		ID string `json:"@id"`
	}
	var list []ref
	if err := json.Unmarshal(data, &list); err != nil {
		var one ref
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		list = []ref{one}
	}
	out := make(refs, 0, len(list))
	for _, item := range list {
		if item.ID != "" {
			out = append(out, item.ID)
		}
	}
	*r = out
	return nil
}

// Node is one entry of the model's @graph.
type Node struct {
	ID                 string `json:"@id"`
	Label              string `json:"rdfs:label"`
	Comment            string `json:"rdfs:comment"`
	SubClassOf         refs   `json:"rdfs:subClassOf"`
	RequiresComponent  refs   `json:"sms:requiresComponent"`
	RequiresDependency refs   `json:"sms:requiresDependency"`
	RangeIncludes      refs   `json:"schema:rangeIncludes"`
	DomainIncludes     refs   `json:"schema:domainIncludes"`
}

// LocalName returns the part of an @id after its prefix ("bts:Patient" ->
// "Patient").
func LocalName(id string) string {
	return id[strings.LastIndex(id, ":")+1:]
}

// Schema is a parsed JSON-LD data model.
type Schema struct {
	nodes        *orderedmap.OrderedMap[string, *Node]
	rangeMembers map[string]bool
	dependencies map[string]bool
}

// Parse reads a JSON-LD model document.
func Parse(r io.Reader) (*Schema, error) {
	var doc struct {
		Graph []*Node `json:"@graph"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if len(doc.Graph) == 0 {
		return nil, errors.New("model has an empty @graph")
	}
	s := &Schema{
		nodes:        orderedmap.New[string, *Node](),
		rangeMembers: make(map[string]bool),
		dependencies: make(map[string]bool),
	}
	for _, n := range doc.Graph {
		s.nodes.Set(n.ID, n)
		for _, id := range n.RangeIncludes {
			s.rangeMembers[id] = true
		}
		for _, id := range n.RequiresDependency {
			s.dependencies[id] = true
		}
	}
	return s, nil
}

// Load reads a JSON-LD model from any afs location.
func Load(ctx context.Context, fs afs.Service, location string) (*Schema, error) {
	data, err := fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", location, err)
	}
	return Parse(bytes.NewReader(data))
}

// Len returns the number of graph nodes.
func (s *Schema) Len() int {
	return s.nodes.Len()
}

// Node returns the node with the given @id, or nil.
func (s *Schema) Node(id string) *Node {
	n, _ := s.nodes.Get(id)
	return n
}

// Entity is a node with its relations resolved against the whole graph.
type Entity struct {
	ID         string
	Comment    string
	Properties []string
	Subclasses []string
	Super      []string
	Neighbors  []string
}

// Describe resolves the relations of the node with the given @id:
//   - properties are its dependencies plus every node declaring it in
//     domainIncludes;
//   - subclasses are its direct subclasses that are neither enumeration
//     values nor dependencies of another node;
//   - neighbors are its components that themselves have dependencies and
//     are not among its superclasses.
func (s *Schema) Describe(id string) (*Entity, error) {
	node := s.Node(id)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}

	properties := set(node.RequiresDependency...)
	subclasses := make(map[string]bool)
	for pair := s.nodes.Oldest(); pair != nil; pair = pair.Next() {
		n := pair.Value
		if slices.Contains(n.DomainIncludes, id) {
			properties[n.ID] = true
		}
		if slices.Contains(n.SubClassOf, id) {
			subclasses[n.ID] = true
		}
	}
	for subclass := range subclasses {
		if s.rangeMembers[subclass] || s.dependencies[subclass] {
			delete(subclasses, subclass)
		}
	}

	super := set(node.SubClassOf...)
	neighbors := make(map[string]bool)
	for _, c := range node.RequiresComponent {
		if super[c] {
			continue
		}
		if component := s.Node(c); component != nil && len(component.RequiresDependency) > 0 {
			neighbors[c] = true
		}
	}

	return &Entity{
		ID:         id,
		Comment:    node.Comment,
		Properties: sorted(properties),
		Subclasses: sorted(subclasses),
		Super:      sorted(super),
		Neighbors:  sorted(neighbors),
	}, nil
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

func sorted(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
