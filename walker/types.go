package walker

import (
	"errors"
	"strings"

	"github.com/gofhir/gen3dict/service"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrStructural is returned when a profile cannot be walked: an element
// without an id, or a declared property with no matching definition.
var ErrStructural = errors.New("structural error")

// RootKey names the synthetic entry describing a level.
const RootKey = "_root"

// Root describes one level of the walk: the resource itself or an
// embedded structure.
type Root struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Type        string `json:"type" yaml:"type"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Property is one walked property.
type Property struct {
	// Name is the property name as emitted, e.g. valueQuantity or for_fhir.
	Name string
	// JSName is the name used in FHIR JSON, e.g. for.
	JSName string
	// OfMany is the base name of an expanded choice element.
	OfMany string
	// Type is the declared type code.
	Type     string
	Kind     service.TypeKind
	IsList   bool
	Required bool
	Element  *service.ElementDefinition
}

// Binding returns the bound value set URL, if any.
func (p *Property) Binding() string {
	if p == nil || p.Element == nil || p.Element.Binding == nil {
		return ""
	}
	return p.Element.Binding.ValueSet
}

// Entry is a Table value: exactly one of Root and Property is set.
type Entry struct {
	Root     *Root
	Property *Property
}

// Table maps dot-joined property paths to their descriptors, in walk
// order. Each level contributes a "_root" entry ("_root", "contact._root").
type Table struct {
	entries *orderedmap.OrderedMap[string, Entry]
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{entries: orderedmap.New[string, Entry]()}
}

// Len returns the number of entries, roots included.
func (t *Table) Len() int {
	return t.entries.Len()
}

// Get returns the entry at path.
func (t *Table) Get(path string) (Entry, bool) {
	return t.entries.Get(path)
}

// Has reports whether path names a property.
func (t *Table) Has(path string) bool {
	return t.Property(path) != nil
}

// Property returns the property at path, or nil.
func (t *Table) Property(path string) *Property {
	e, ok := t.entries.Get(path)
	if !ok {
		return nil
	}
	return e.Property
}

// Root returns the level descriptor for a property path prefix; the empty
// prefix names the top level.
func (t *Table) Root(prefix string) *Root {
	e, ok := t.entries.Get(rootKey(prefix))
	if !ok {
		return nil
	}
	return e.Root
}

// Keys returns every key in order, roots included.
func (t *Table) Keys() []string {
	keys := make([]string, 0, t.entries.Len())
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Paths returns the property paths in order.
func (t *Table) Paths() []string {
	paths := make([]string, 0, t.entries.Len())
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Property != nil {
			paths = append(paths, pair.Key)
		}
	}
	return paths
}

// Prune removes every property matched by f together with its subtree,
// and returns the number of entries removed.
func (t *Table) Prune(f *PathFilter) int {
	if f == nil || f.Empty() {
		return 0
	}
	var doomed []string
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		if f.Match(pair.Key) {
			doomed = append(doomed, pair.Key)
		}
	}
	for _, k := range doomed {
		t.entries.Delete(k)
	}
	return len(doomed)
}

func (t *Table) setRoot(prefix string, r *Root) {
	t.entries.Set(rootKey(prefix), Entry{Root: r})
}

// add stores p at path unless the path is taken.
func (t *Table) add(path string, p *Property) bool {
	if _, ok := t.entries.Get(path); ok {
		return false
	}
	t.entries.Set(path, Entry{Property: p})
	return true
}

// merge copies child entries under prefix.
func (t *Table) merge(prefix string, child *Table) {
	if child == nil {
		return
	}
	for pair := child.entries.Oldest(); pair != nil; pair = pair.Next() {
		key := prefix + "." + pair.Key
		if _, ok := t.entries.Get(key); !ok {
			t.entries.Set(key, pair.Value)
		}
	}
}

func rootKey(prefix string) string {
	if prefix == "" {
		return RootKey
	}
	return prefix + "." + RootKey
}

// IsRootKey reports whether key names a level descriptor.
func IsRootKey(key string) bool {
	return key == RootKey || strings.HasSuffix(key, "."+RootKey)
}

// ParentPath returns the parent path.
// Example: "contact.name.family" -> "contact.name"
func ParentPath(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// FirstSegment returns the first segment of a path.
func FirstSegment(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}
