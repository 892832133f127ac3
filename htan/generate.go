package htan

import (
	"context"
	"fmt"

	"github.com/gofhir/gen3dict/gen3"
	"github.com/gofhir/gen3dict/pkg/logger"
)

// Namespace of HTAN derived nodes.
const Namespace = "http://gdc.nci.nih.gov"

const (
	toMany = "_definitions.yaml#/to_many"
	toOne  = "_definitions.yaml#/to_one"
)

// Generator turns model entities into Gen3 node schemas.
type Generator struct {
	schema *Schema
	log    *logger.Logger
}

// Option configures the Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(g *Generator) {
		g.log = l
	}
}

// NewGenerator creates a generator over a parsed model.
func NewGenerator(schema *Schema, opts ...Option) *Generator {
	g := &Generator{schema: schema, log: logger.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the node for id followed by one node per neighbor, each
// linked back to it.
func (g *Generator) Generate(ctx context.Context, id string) ([]*gen3.Schema, error) {
	root, err := g.schema.Describe(id)
	if err != nil {
		return nil, err
	}
	s, err := g.Build(root, nil)
	if err != nil {
		return nil, err
	}
	schemas := []*gen3.Schema{s}
	for _, neighbor := range root.Neighbors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := g.schema.Describe(neighbor)
		if err != nil {
			return nil, err
		}
		s, err := g.Build(e, root)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

// Build renders one entity. parent, when set, receives a link from the
// node.
func (g *Generator) Build(e *Entity, parent *Entity) (*gen3.Schema, error) {
	node := g.schema.Node(e.ID)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, e.ID)
	}
	name := NodeName(node)

	s := gen3.NewSchema(name)
	s.SetTitle(label(node))
	s.SetNamespace(Namespace)
	s.SetCategory(category(name))
	s.SetDescription(e.Comment)
	s.AddType(label(node))

	for _, id := range e.Subclasses {
		sub, err := g.schema.Describe(id)
		if err != nil {
			return nil, err
		}
		s.AddSubtype(label(g.schema.Node(id)))
		g.addProperties(s, sub)
	}
	for _, id := range e.Neighbors {
		backref := Plural(NodeName(g.schema.Node(id)))
		if backref == "patients" {
			g.log.Debug("%s: skipping link to %s", name, backref)
			continue
		}
		s.Properties().Set(backref, gen3.NewObject("$ref", toMany))
	}
	g.addProperties(s, e)

	if parent != nil {
		link := g.link(node, g.schema.Node(parent.ID))
		s.AddLink(link)
		linkName, _ := link.Get("name")
		s.AddRequired(linkName.(string))
		s.Properties().Set(linkName.(string), gen3.NewObject("$ref", toMany))
	}

	if special, ok := specialCases[name]; ok {
		special(s)
	}
	return s, nil
}

// addProperties adds the entity's properties keyed by label: enumerations
// for properties with a value range, strings otherwise.
func (g *Generator) addProperties(s *gen3.Schema, e *Entity) {
	props := s.Properties()
	for _, id := range e.Properties {
		p := g.schema.Node(id)
		if p == nil {
			g.log.Warn("%s: property %s is not in the model", e.ID, id)
			continue
		}
		if len(p.RangeIncludes) == 0 {
			props.Set(label(p), gen3.NewObject("type", "string", "description", p.Comment))
			continue
		}
		enum := make([]string, 0, len(p.RangeIncludes))
		for _, v := range p.RangeIncludes {
			enum = append(enum, LocalName(v))
		}
		props.Set(label(p), gen3.NewObject("description", p.Comment, "enum", enum))
	}
}

// link describes a many-to-many edge from node to target.
func (g *Generator) link(node, target *Node) *gen3.Object {
	targetType := NodeName(target)
	return newLink(Plural(Plural(targetType)), Plural(NodeName(node)), "refers_to", targetType, "many_to_many", true)
}

func newLink(name, backref, label, target, multiplicity string, required bool) *gen3.Object {
	return gen3.NewObject(
		"name", name,
		"backref", backref,
		"label", label,
		"target_type", target,
		"multiplicity", multiplicity,
		"required", required,
	)
}

func category(name string) string {
	if name == "file" {
		return "data_file"
	}
	return "clinical"
}
