package service

import (
	"strings"
	"unicode"
)

// TypeKind classifies a declared type for traversal.
type TypeKind int

const (
	// KindPrimitive types are leaves.
	KindPrimitive TypeKind = iota
	// KindComposite types are nested-only structures described inside the
	// owning profile's element list.
	KindComposite
	// KindResource types have an independently fetchable profile.
	KindResource
)

// String returns the kind name.
func (k TypeKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindComposite:
		return "composite"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// SystemTypePrefix prefixes FHIRPath system types such as System.String.
const SystemTypePrefix = "http://hl7.org/fhirpath/"

var compositeTypes = map[string]bool{
	"BackboneElement": true,
	"Element":         true,
}

// skippedTypes are never walked nor emitted.
var skippedTypes = map[string]bool{
	"Extension": true,
	"Meta":      true,
}

// leafTypes are emitted but not followed.
var leafTypes = map[string]bool{
	"Identifier": true,
}

// ClassifyType derives the kind of a type code from the code alone:
// system and lower-case codes are primitives, BackboneElement and Element
// are composites, and every other capitalised code names a profile.
func ClassifyType(code string) TypeKind {
	if code == "" || strings.HasPrefix(code, SystemTypePrefix) {
		return KindPrimitive
	}
	if compositeTypes[code] {
		return KindComposite
	}
	if leafTypes[code] {
		return KindPrimitive
	}
	r := []rune(code)[0]
	if unicode.IsLower(r) {
		return KindPrimitive
	}
	return KindResource
}

// IsSkippedType reports whether properties of this type are dropped.
func IsSkippedType(code string) bool {
	return skippedTypes[code]
}

// IsLeafType reports whether a structured type must not be followed.
func IsLeafType(code string) bool {
	return leafTypes[code]
}
