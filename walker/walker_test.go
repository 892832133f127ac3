package walker

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/gofhir/gen3dict/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfiles map[string]*service.StructureDefinition

func (f fakeProfiles) ResolveProfile(ctx context.Context, name, url string) (*service.StructureDefinition, error) {
	if sd, ok := f[name]; ok {
		return sd, nil
	}
	return nil, fmt.Errorf("%w: %s", service.ErrNotFound, name)
}

func el(id string, min int, max string, types ...string) service.ElementDefinition {
	e := service.ElementDefinition{ID: id, Path: id, Min: min, Max: max, Definition: "Definition of " + id}
	for _, code := range types {
		e.Types = append(e.Types, service.TypeRef{Code: code, Kind: service.ClassifyType(code)})
	}
	return e
}

func profile(name, description string, elements ...service.ElementDefinition) *service.StructureDefinition {
	return &service.StructureDefinition{
		ID: name, Name: name, Type: name, Description: description,
		Snapshot: append([]service.ElementDefinition{el(name, 0, "*")}, elements...),
	}
}

func newTestWalker(profiles fakeProfiles, opts ...Option) *Walker {
	return New(profiles, append([]Option{WithLogger(logger.New(&strings.Builder{}, logger.LevelNone))}, opts...)...)
}

func patientProfiles() fakeProfiles {
	gender := el("Patient.gender", 0, "1", "code")
	gender.Binding = &service.Binding{Strength: "required", ValueSet: "http://hl7.org/fhir/ValueSet/administrative-gender|4.0.1"}
	return fakeProfiles{
		"Patient": profile("Patient", "Demographics and other administrative information.",
			el("Patient.id", 0, "1", "http://hl7.org/fhirpath/System.String"),
			el("Patient.meta", 0, "1", "Meta"),
			el("Patient.extension", 0, "*", "Extension"),
			el("Patient.identifier", 0, "*", "Identifier"),
			gender,
			el("Patient.name", 0, "*", "HumanName"),
			el("Patient.contact", 0, "*", "BackboneElement"),
			el("Patient.contact.extension", 0, "*", "Extension"),
			el("Patient.contact.name", 0, "1", "HumanName"),
			el("Patient.contact.gender", 0, "1", "code"),
			el("Patient.deceased[x]", 0, "1", "boolean", "dateTime"),
			el("Patient.link", 0, "*", "BackboneElement"),
			el("Patient.link.other", 1, "1", "Reference"),
		),
		"HumanName": profile("HumanName", "A human's name.",
			el("HumanName.family", 0, "1", "string"),
			el("HumanName.given", 0, "*", "string"),
		),
	}
}

func TestWalker_Patient(t *testing.T) {
	w := newTestWalker(patientProfiles())
	tbl, err := w.Walk(context.Background(), "Patient", "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"_root",
		"id", "identifier", "gender",
		"name", "name._root", "name.family", "name.given",
		"contact", "contact._root",
		"contact.name", "contact.name._root", "contact.name.family", "contact.name.given",
		"contact.gender",
		"deceasedBoolean", "deceasedDateTime",
		"link", "link._root", "link.other",
	}, tbl.Keys())

	root := tbl.Root("")
	require.NotNil(t, root)
	assert.Equal(t, "Patient", root.Name)
	assert.Equal(t, "Demographics and other administrative information.", root.Description)

	contactRoot := tbl.Root("contact")
	require.NotNil(t, contactRoot)
	assert.Equal(t, "Patient.contact", contactRoot.ID)
	assert.Equal(t, "Definition of Patient.contact", contactRoot.Description)

	gender := tbl.Property("gender")
	require.NotNil(t, gender)
	assert.Equal(t, "code", gender.Type)
	assert.Equal(t, "http://hl7.org/fhir/ValueSet/administrative-gender|4.0.1", gender.Binding())

	deceased := tbl.Property("deceasedDateTime")
	require.NotNil(t, deceased)
	assert.Equal(t, "deceased", deceased.OfMany)
	assert.Equal(t, "Patient.deceased[x]", deceased.Element.ID)

	assert.True(t, tbl.Property("name").IsList)
	assert.True(t, tbl.Property("link.other").Required)
	assert.Nil(t, tbl.Property("meta"))
	assert.Equal(t, 2, w.Stats().ProfilesResolved)
	assert.Equal(t, len(tbl.Paths()), w.Stats().Properties)
}

func TestWalker_DirectRecursionTerminates(t *testing.T) {
	profiles := fakeProfiles{
		"Node": profile("Node", "A self-referential node.",
			el("Node.label", 0, "1", "string"),
			el("Node.child", 0, "*", "Node"),
		),
	}
	w := newTestWalker(profiles)
	tbl, err := w.Walk(context.Background(), "Node", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"label", "child"}, tbl.Paths())
	assert.Equal(t, 1, w.Stats().RecursionStops)
}

func TestWalker_TwoHopRecursionTerminates(t *testing.T) {
	profiles := fakeProfiles{
		"Alpha": profile("Alpha", "", el("Alpha.beta", 0, "1", "Beta")),
		"Beta":  profile("Beta", "", el("Beta.alpha", 0, "1", "Alpha"), el("Beta.note", 0, "1", "string")),
	}
	w := newTestWalker(profiles)
	tbl, err := w.Walk(context.Background(), "Alpha", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "beta.alpha", "beta.note"}, tbl.Paths())
	assert.Equal(t, 1, w.Stats().RecursionStops)
}

func TestWalker_SelfContentReference(t *testing.T) {
	profiles := fakeProfiles{
		"Questionnaire": profile("Questionnaire", "",
			el("Questionnaire.item", 0, "*", "BackboneElement"),
			el("Questionnaire.item.linkId", 1, "1", "string"),
			service.ElementDefinition{ID: "Questionnaire.item.item", Min: 0, Max: "*", ContentReference: "#Questionnaire.item"},
		),
	}
	tbl, err := newTestWalker(profiles).Walk(context.Background(), "Questionnaire", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"item", "item.linkId", "item.item"}, tbl.Paths())
	assert.Equal(t, "BackboneElement", tbl.Property("item.item").Type)
}

func TestWalker_ContentReferenceDereferenced(t *testing.T) {
	profiles := fakeProfiles{
		"Cap": profile("Cap", "",
			el("Cap.rest", 0, "*", "BackboneElement"),
			el("Cap.rest.resource", 0, "*", "BackboneElement"),
			el("Cap.rest.resource.operation", 0, "*", "BackboneElement"),
			el("Cap.rest.resource.operation.name", 1, "1", "string"),
			service.ElementDefinition{ID: "Cap.rest.operation", Max: "*", ContentReference: "http://hl7.org/fhir/StructureDefinition/Cap#Cap.rest.resource.operation"},
		),
	}
	tbl, err := newTestWalker(profiles).Walk(context.Background(), "Cap", "")
	require.NoError(t, err)
	assert.Contains(t, tbl.Paths(), "rest.resource.operation.name")
	assert.Contains(t, tbl.Paths(), "rest.operation.name")

	root := tbl.Root("rest.operation")
	require.NotNil(t, root)
	assert.Equal(t, "Cap.rest.resource.operation", root.ID)
}

func TestWalker_ReservedWordNeedsReservedStrategy(t *testing.T) {
	profiles := fakeProfiles{
		"Provenance": profile("Provenance", "", el("Provenance.for", 0, "*", "string")),
	}
	tbl, err := newTestWalker(profiles).Walk(context.Background(), "Provenance", "")
	require.NoError(t, err)
	p := tbl.Property("for_fhir")
	require.NotNil(t, p)
	assert.Equal(t, "for", p.JSName)
	assert.Equal(t, "Provenance.for", p.Element.ID)

	_, err = newTestWalker(profiles, WithMatchStrategies(DefaultMatchStrategies[0])).Walk(context.Background(), "Provenance", "")
	assert.ErrorIs(t, err, ErrStructural)
}

func TestWalker_Errors(t *testing.T) {
	_, err := newTestWalker(fakeProfiles{}).Walk(context.Background(), "Nothing", "")
	assert.ErrorIs(t, err, service.ErrNotFound)

	broken := fakeProfiles{"Broken": profile("Broken", "", service.ElementDefinition{Path: "Broken.x"})}
	_, err = newTestWalker(broken).Walk(context.Background(), "Broken", "")
	assert.ErrorIs(t, err, ErrStructural)

	_, err = newTestWalker(fakeProfiles{}).WalkProfile(context.Background(), nil)
	assert.ErrorIs(t, err, ErrStructural)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newTestWalker(patientProfiles()).Walk(ctx, "Patient", "")
	assert.ErrorIs(t, err, context.Canceled)
}

// interruptedProfiles fails lookups of one type with a context error.
type interruptedProfiles struct {
	fakeProfiles
	name string
	err  error
}

func (p interruptedProfiles) ResolveProfile(ctx context.Context, name, url string) (*service.StructureDefinition, error) {
	if name == p.name {
		return nil, p.err
	}
	return p.fakeProfiles.ResolveProfile(ctx, name, url)
}

func TestWalker_InterruptedLookupIsNotEmbedded(t *testing.T) {
	profiles := interruptedProfiles{fakeProfiles: patientProfiles(), name: "HumanName", err: context.DeadlineExceeded}
	w := New(profiles, WithLogger(logger.New(&strings.Builder{}, logger.LevelNone)))
	_, err := w.Walk(context.Background(), "Patient", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
