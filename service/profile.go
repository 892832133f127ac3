// Package service defines the domain model shared by the generator packages
// and the small interfaces the walker and normalizer depend on.
package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// StructureDefinition is the internal form of a FHIR profile document.
type StructureDefinition struct {
	ID             string
	URL            string
	Name           string
	Type           string
	Kind           string
	Abstract       bool
	BaseDefinition string
	Description    string
	Snapshot       []ElementDefinition

	// Raw is the document as fetched, kept for the on-disk cache.
	Raw json.RawMessage
}

// RootName returns the identifier prefix of the profile's elements.
// Profiles declare it in type; element-only documents fall back to id.
func (sd *StructureDefinition) RootName() string {
	if sd.Type != "" {
		return sd.Type
	}
	return sd.ID
}

// ElementDefinition is one node of a profile's structural tree.
type ElementDefinition struct {
	ID               string
	Path             string
	Short            string
	Definition       string
	Min              int
	Max              string
	Types            []TypeRef
	Binding          *Binding
	Pattern          *Coding // fixed or pattern coded value, first coding only
	ContentReference string  // e.g. "#Questionnaire.item"
}

// IsRequired reports whether the element has a non-zero minimum cardinality.
func (e *ElementDefinition) IsRequired() bool {
	return e != nil && e.Min > 0
}

// IsList reports whether the element may repeat.
func (e *ElementDefinition) IsList() bool {
	if e == nil || e.Max == "" {
		return false
	}
	if e.Max == "*" {
		return true
	}
	n, err := strconv.Atoi(e.Max)
	return err == nil && n > 1
}

// TypeCodes returns the declared type codes in order.
func (e *ElementDefinition) TypeCodes() []string {
	codes := make([]string, 0, len(e.Types))
	for _, t := range e.Types {
		codes = append(codes, t.Code)
	}
	return codes
}

// IsChoice reports whether the element is a multi-typed [x] element.
func (e *ElementDefinition) IsChoice() bool {
	return strings.HasSuffix(e.ID, "[x]")
}

// LastSegment returns the final path segment of the element id.
func (e *ElementDefinition) LastSegment() string {
	if i := strings.LastIndexByte(e.ID, '.'); i >= 0 {
		return e.ID[i+1:]
	}
	return e.ID
}

// TypeRef is a declared type on an element.
type TypeRef struct {
	Code          string
	Kind          TypeKind
	Profile       []string
	TargetProfile []string
}

// Binding is a vocabulary binding on an element.
type Binding struct {
	Strength    string
	ValueSet    string
	Description string
}

// Coding is a single system/code pair.
type Coding struct {
	System  string
	Code    string
	Display string
}

// --- Small Interfaces ---

// ProfileResolver resolves a profile name, or an explicit URL, to a document.
// Implementations return ErrNotFound when nothing can be fetched.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, name, url string) (*StructureDefinition, error)
}

// ProfileCache caches resolved profiles for the lifetime of a run.
type ProfileCache interface {
	Get(key string) (*StructureDefinition, bool)
	Set(key string, profile *StructureDefinition)
}
