package config

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/viant/afs"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// ErrMissing is returned when the resource configuration file does not exist.
var ErrMissing = errors.New("configuration file not found")

// Resource is the configuration of one generated node.
type Resource struct {
	// Name is the configuration key, e.g. Patient.
	Name string `yaml:"-"`
	// Source is the profile URL to walk; empty walks the base resource.
	Source     string            `yaml:"source,omitempty"`
	Category   string            `yaml:"category,omitempty"`
	Properties PropertySelection `yaml:"properties"`
	// Enums maps a property path to the value set that replaces its binding.
	Enums map[string]string `yaml:"enums,omitempty"`
	// Links are Gen3 link definitions, emitted verbatim.
	Links []any `yaml:"links,omitempty"`
}

// PropertySelection lists the walked paths to emit and the subtrees to drop.
type PropertySelection struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Resources is the resource configuration document, in document order.
type Resources struct {
	items *orderedmap.OrderedMap[string, *Resource]
}

// NewResources returns an empty document.
func NewResources() *Resources {
	return &Resources{items: orderedmap.New[string, *Resource]()}
}

// Add appends r, replacing any resource of the same name.
func (r *Resources) Add(res *Resource) {
	r.items.Set(res.Name, res)
}

// Get returns the named resource, or nil.
func (r *Resources) Get(name string) *Resource {
	res, _ := r.items.Get(name)
	return res
}

// Names returns resource names in document order.
func (r *Resources) Names() []string {
	names := make([]string, 0, r.items.Len())
	for pair := r.items.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Len returns the number of resources.
func (r *Resources) Len() int {
	return r.items.Len()
}

// UnmarshalYAML decodes a mapping of resource name to Resource.
func (r *Resources) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: resource configuration must be a mapping", node.Line)
	}
	if r.items == nil {
		r.items = orderedmap.New[string, *Resource]()
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		res := &Resource{}
		if err := node.Content[i+1].Decode(res); err != nil {
			return fmt.Errorf("resource %s: %w", name, err)
		}
		res.Name = name
		r.items.Set(name, res)
	}
	return nil
}

// ParseResources validates data against the configuration schema and decodes
// it.
func ParseResources(data []byte) (*Resources, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	res := NewResources()
	if err := yaml.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return res, nil
}

// ReadResources parses a configuration document from r.
func ReadResources(r io.Reader) (*Resources, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read resource configuration: %w", err)
	}
	return ParseResources(data)
}

// LoadResources reads and parses the configuration document at location,
// a path or any URL fs understands.
func LoadResources(ctx context.Context, fs afs.Service, location string) (*Resources, error) {
	ok, err := fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", location, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissing, location)
	}
	data, err := fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	res, err := ParseResources(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return res, nil
}
