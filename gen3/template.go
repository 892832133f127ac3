package gen3

import (
	"encoding/json"
	"slices"
)

// Scaffold constants shared by every emitted node.
const (
	SchemaDraft     = "http://json-schema.org/draft-04/schema#"
	Namespace       = "http://aced-idp.org"
	DefaultCategory = "administrative"
)

// SystemProperties are maintained by Gen3 itself.
var SystemProperties = []string{"id", "project_id", "state", "created_datetime", "updated_datetime"}

// BaseRequired is the required list every node starts from.
var BaseRequired = []string{"submitter_id", "type", "projects"}

// Degradation records a vocabulary binding that could not be turned into an
// enum.
type Degradation struct {
	Property string
	System   string
	Comment  string
}

// Schema is one Gen3 node definition.
type Schema struct {
	Name     string
	Doc      *Object
	Degraded []Degradation
}

// NewSchema returns the scaffold for a node called name: fixed system
// properties, uniqueness keys, the base required list and base properties.
// Every call builds fresh values so schemas never share state.
func NewSchema(name string) *Schema {
	doc := NewObject(
		"$schema", SchemaDraft,
		"id", name,
		"title", name,
		"type", "object",
		"namespace", Namespace,
		"category", DefaultCategory,
		"program", "*",
		"project", "*",
		"description", "description goes here",
		"additionalProperties", false,
		"submittable", true,
		"validators", nil,
		"systemProperties", append([]string(nil), SystemProperties...),
		"links", []any{},
		"required", append([]string(nil), BaseRequired...),
		"uniqueKeys", [][]string{{"id"}, {"project_id", "submitter_id"}},
		"properties", baseProperties(),
	)
	return &Schema{Name: name, Doc: doc}
}

func baseProperties() *Object {
	return NewObject(
		"type", NewObject(
			"enum", []string{},
			"description", "Gen3's type field.",
		),
		"id", NewObject(
			"$ref", "_definitions.yaml#/UUID",
			"systemAlias", "node_id",
		),
		"state", NewObject("$ref", "_definitions.yaml#/state"),
		"submitter_id", NewObject(
			"description", `Each record in every node will have a "submitter_id", which is a unique alphanumeric identifier for that record and is specified by the data submitter, and a "type", which is simply the node name.`,
			"type", []string{"string", "null"},
		),
		"projects", NewObject(
			"$ref", "_definitions.yaml#/to_many_project",
			"description", "Link to Gen3's project.",
		),
		"project_id", NewObject("type", "string"),
		"created_datetime", NewObject("$ref", "_definitions.yaml#/datetime"),
		"updated_datetime", NewObject("$ref", "_definitions.yaml#/datetime"),
	)
}

// BasePropertyNames returns the property names present in every scaffold.
func BasePropertyNames() []string {
	return Keys(baseProperties())
}

// Properties returns the node's property map.
func (s *Schema) Properties() *Object {
	return child(s.Doc, "properties")
}

// Property returns the descriptor of one property, or nil.
func (s *Schema) Property(name string) *Object {
	return child(s.Properties(), name)
}

// Required returns the required property names.
func (s *Schema) Required() []string {
	v, _ := s.Doc.Get("required")
	r, _ := v.([]string)
	return r
}

func (s *Schema) setRequired(r []string) {
	s.Doc.Set("required", r)
}

// SetDescription sets the node description.
func (s *Schema) SetDescription(d string) {
	s.Doc.Set("description", d)
}

// SetCategory sets the node category; empty keeps the default.
func (s *Schema) SetCategory(c string) {
	if c != "" {
		s.Doc.Set("category", c)
	}
}

// SetLinks replaces the node's links.
func (s *Schema) SetLinks(links []any) {
	if links == nil {
		links = []any{}
	}
	s.Doc.Set("links", links)
}

// AddRequired appends names to the required list, skipping duplicates.
func (s *Schema) AddRequired(names ...string) {
	r := s.Required()
	for _, name := range names {
		if !slices.Contains(r, name) {
			r = append(r, name)
		}
	}
	s.setRequired(r)
}

// AddLink appends one link definition.
func (s *Schema) AddLink(link any) {
	v, _ := s.Doc.Get("links")
	links, _ := v.([]any)
	s.Doc.Set("links", append(links, link))
}

// Links returns the node's link definitions.
func (s *Schema) Links() []any {
	v, _ := s.Doc.Get("links")
	links, _ := v.([]any)
	return links
}

// SetTitle sets the node title.
func (s *Schema) SetTitle(t string) {
	s.Doc.Set("title", t)
}

// SetNamespace sets the node namespace.
func (s *Schema) SetNamespace(ns string) {
	s.Doc.Set("namespace", ns)
}

// AddSubtype appends name to the subtype property's enum, creating the
// property directly after type on first use.
func (s *Schema) AddSubtype(name string) {
	if s.Property("subtype") == nil {
		props := NewObject()
		for pair := s.Properties().Oldest(); pair != nil; pair = pair.Next() {
			props.Set(pair.Key, pair.Value)
			if pair.Key == "type" {
				props.Set("subtype", NewObject("enum", []string{}))
			}
		}
		if _, ok := props.Get("subtype"); !ok {
			props.Set("subtype", NewObject("enum", []string{}))
		}
		s.Doc.Set("properties", props)
	}
	sub := s.Property("subtype")
	v, _ := sub.Get("enum")
	enum, _ := v.([]string)
	sub.Set("enum", append(enum, name))
}

// AddType appends name to the type property's enum.
func (s *Schema) AddType(name string) {
	typ := s.Property("type")
	if typ == nil {
		return
	}
	v, _ := typ.Get("enum")
	enum, _ := v.([]string)
	typ.Set("enum", append(enum, name))
}

// MarshalYAML renders the document in template order.
func (s *Schema) MarshalYAML() (any, error) {
	return s.Doc, nil
}

// MarshalJSON renders the document in template order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Doc)
}
