package walker

import (
	"strings"

	"github.com/gofhir/gen3dict/service"
)

// ReservedWords maps FHIR element names that collide with reserved words
// of the generated models to the names used in their place.
var ReservedWords = map[string]string{
	"for":    "for_fhir",
	"from":   "from_fhir",
	"class":  "class_fhir",
	"import": "import_fhir",
	"global": "global_fhir",
	"assert": "assert_fhir",
	"except": "except_fhir",
}

var reservedInverted = func() map[string]string {
	m := make(map[string]string, len(ReservedWords))
	for k, v := range ReservedWords {
		m[v] = k
	}
	return m
}()

// choiceSuffix marks a multi-typed element.
const choiceSuffix = "[x]"

// expandElement returns the properties declared by a direct child element.
// A choice element yields one property per declared type.
func expandElement(elem *service.ElementDefinition) []*Property {
	seg := elem.LastSegment()
	if base, ok := strings.CutSuffix(seg, choiceSuffix); ok {
		props := make([]*Property, 0, len(elem.Types))
		for _, t := range elem.Types {
			name := base + upperFirst(t.Code)
			props = append(props, &Property{
				Name:   name,
				JSName: name,
				OfMany: base,
				Type:   t.Code,
				Kind:   t.Kind,
			})
		}
		return props
	}

	p := &Property{Name: seg, JSName: seg}
	if renamed, ok := ReservedWords[seg]; ok {
		p.Name = renamed
	}
	switch {
	case len(elem.Types) > 0:
		p.Type = elem.Types[0].Code
		p.Kind = elem.Types[0].Kind
	case elem.ContentReference != "":
		p.Type = "BackboneElement"
		p.Kind = service.KindComposite
	}
	return []*Property{p}
}

// MatchStrategy derives the id of the element defining p within the level
// rooted at root. An empty id means the strategy does not apply.
type MatchStrategy struct {
	Name string
	ID   func(root string, p *Property) string
}

// DefaultMatchStrategies are tried in order against each level of the
// ancestor chain, innermost level first.
var DefaultMatchStrategies = []MatchStrategy{
	{Name: "direct", ID: directID},
	{Name: "choice", ID: choiceID},
	{Name: "reserved", ID: reservedID},
}

func directID(root string, p *Property) string {
	return root + "." + p.Name
}

func choiceID(root string, p *Property) string {
	if p.OfMany == "" {
		return ""
	}
	return root + "." + p.OfMany + choiceSuffix
}

func reservedID(root string, p *Property) string {
	original, ok := reservedInverted[p.Name]
	if !ok {
		return ""
	}
	return root + "." + original
}
