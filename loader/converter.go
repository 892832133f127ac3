package loader

import (
	"encoding/json"
	"fmt"

	"github.com/gofhir/fhir/r4"
	"github.com/gofhir/gen3dict/service"
)

// R4Converter converts R4 StructureDefinitions to the internal service model.
type R4Converter struct{}

// NewR4Converter creates a new R4 converter.
func NewR4Converter() *R4Converter {
	return &R4Converter{}
}

// Parse decodes a raw StructureDefinition document and converts it.
// The raw bytes are retained on the result.
func (c *R4Converter) Parse(raw []byte) (*service.StructureDefinition, error) {
	var sd r4.StructureDefinition
	if err := json.Unmarshal(raw, &sd); err != nil {
		return nil, fmt.Errorf("failed to parse StructureDefinition: %w", err)
	}
	result := c.ConvertStructureDefinition(&sd)
	result.Raw = append(json.RawMessage(nil), raw...)
	return result, nil
}

// ConvertStructureDefinition converts an r4.StructureDefinition to service.StructureDefinition.
func (c *R4Converter) ConvertStructureDefinition(sd *r4.StructureDefinition) *service.StructureDefinition {
	if sd == nil {
		return nil
	}

	result := &service.StructureDefinition{
		ID:             derefString(sd.Id),
		URL:            derefString(sd.Url),
		Name:           derefString(sd.Name),
		Type:           derefString(sd.Type),
		Kind:           convertKind(sd.Kind),
		Abstract:       derefBool(sd.Abstract),
		BaseDefinition: derefString(sd.BaseDefinition),
		Description:    derefString(sd.Description),
	}

	if sd.Snapshot != nil {
		result.Snapshot = c.convertElementDefinitions(sd.Snapshot.Element)
	}
	return result
}

func (c *R4Converter) convertElementDefinitions(elements []r4.ElementDefinition) []service.ElementDefinition {
	if len(elements) == 0 {
		return nil
	}
	result := make([]service.ElementDefinition, 0, len(elements))
	for i := range elements {
		result = append(result, c.convertElementDefinition(&elements[i]))
	}
	return result
}

func (c *R4Converter) convertElementDefinition(ed *r4.ElementDefinition) service.ElementDefinition {
	return service.ElementDefinition{
		ID:               derefString(ed.Id),
		Path:             derefString(ed.Path),
		Short:            derefString(ed.Short),
		Definition:       derefString(ed.Definition),
		Min:              convertMin(ed.Min),
		Max:              derefString(ed.Max),
		Types:            convertTypes(ed.Type),
		Binding:          convertBinding(ed.Binding),
		Pattern:          extractCoding(ed),
		ContentReference: derefString(ed.ContentReference),
	}
}

func convertTypes(types []r4.ElementDefinitionType) []service.TypeRef {
	if len(types) == 0 {
		return nil
	}
	result := make([]service.TypeRef, 0, len(types))
	for i := range types {
		code := derefString(types[i].Code)
		result = append(result, service.TypeRef{
			Code:          code,
			Kind:          service.ClassifyType(code),
			Profile:       types[i].Profile,
			TargetProfile: types[i].TargetProfile,
		})
	}
	return result
}

func convertBinding(binding *r4.ElementDefinitionBinding) *service.Binding {
	if binding == nil {
		return nil
	}
	strength := ""
	if binding.Strength != nil {
		strength = string(*binding.Strength)
	}
	return &service.Binding{
		Strength:    strength,
		ValueSet:    derefString(binding.ValueSet),
		Description: derefString(binding.Description),
	}
}

// extractCoding returns the fixed or pattern coded value of an element.
// When a CodeableConcept carries several codings the last one wins.
func extractCoding(ed *r4.ElementDefinition) *service.Coding {
	for _, cc := range []*r4.CodeableConcept{ed.PatternCodeableConcept, ed.FixedCodeableConcept} {
		if cc == nil || len(cc.Coding) == 0 {
			continue
		}
		return convertCoding(&cc.Coding[len(cc.Coding)-1])
	}
	for _, coding := range []*r4.Coding{ed.PatternCoding, ed.FixedCoding} {
		if coding != nil {
			return convertCoding(coding)
		}
	}
	if ed.FixedCode != nil {
		return &service.Coding{Code: *ed.FixedCode}
	}
	return nil
}

func convertCoding(coding *r4.Coding) *service.Coding {
	if coding.Code == nil {
		return nil
	}
	return &service.Coding{
		System:  derefString(coding.System),
		Code:    derefString(coding.Code),
		Display: derefString(coding.Display),
	}
}

func convertKind(kind *r4.StructureDefinitionKind) string {
	if kind == nil {
		return ""
	}
	return string(*kind)
}

func convertMin(minVal *uint32) int {
	if minVal == nil {
		return 0
	}
	return int(*minVal)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
