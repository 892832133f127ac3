package walker

import (
	"fmt"
	"strings"

	"github.com/gofhir/gen3dict/service"
)

// ElementIndex provides O(1) lookup of the element definitions of one
// level by id. The level is described by its root id and the element
// list it owns: a whole profile snapshot, or the slice of a parent's
// snapshot under an embedded element.
type ElementIndex struct {
	root     string
	elements []service.ElementDefinition
	byID     map[string]*service.ElementDefinition
}

// BuildElementIndex indexes elements for the level rooted at root. Every
// element must carry an id.
func BuildElementIndex(root string, elements []service.ElementDefinition) (*ElementIndex, error) {
	idx := &ElementIndex{
		root:     root,
		elements: elements,
		byID:     make(map[string]*service.ElementDefinition, len(elements)),
	}
	for i := range elements {
		elem := &elements[i]
		if elem.ID == "" {
			return nil, fmt.Errorf("%w: element %d of %s has no id (path %q)", ErrStructural, i, root, elem.Path)
		}
		if _, dup := idx.byID[elem.ID]; !dup {
			idx.byID[elem.ID] = elem
		}
	}
	return idx, nil
}

// Get returns the element with the given id, or nil.
func (idx *ElementIndex) Get(id string) *service.ElementDefinition {
	if idx == nil {
		return nil
	}
	return idx.byID[id]
}

// Root returns the id of the level's root element.
func (idx *ElementIndex) Root() string {
	if idx == nil {
		return ""
	}
	return idx.root
}

// Elements returns the indexed element list.
func (idx *ElementIndex) Elements() []service.ElementDefinition {
	if idx == nil {
		return nil
	}
	return idx.elements
}

// Size returns the number of indexed elements.
func (idx *ElementIndex) Size() int {
	if idx == nil {
		return 0
	}
	return len(idx.byID)
}

// Children returns the direct children of the root in declaration order.
// Slice definitions (ids carrying ':') are not children.
func (idx *ElementIndex) Children() []*service.ElementDefinition {
	if idx == nil {
		return nil
	}
	prefix := idx.root + "."
	var out []*service.ElementDefinition
	for i := range idx.elements {
		elem := &idx.elements[i]
		if !strings.HasPrefix(elem.ID, prefix) {
			continue
		}
		seg := elem.ID[len(prefix):]
		if seg == "" || strings.ContainsAny(seg, ".:") {
			continue
		}
		out = append(out, elem)
	}
	return out
}

// SliceElements returns the elements whose id is id or lies under it.
func SliceElements(elements []service.ElementDefinition, id string) []service.ElementDefinition {
	prefix := id + "."
	var out []service.ElementDefinition
	for i := range elements {
		if elements[i].ID == id || strings.HasPrefix(elements[i].ID, prefix) {
			out = append(out, elements[i])
		}
	}
	return out
}

// upperFirst capitalizes the first letter of a string.
func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
