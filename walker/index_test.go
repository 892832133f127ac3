package walker

import (
	"errors"
	"testing"

	"github.com/gofhir/gen3dict/service"
)

func TestBuildElementIndex(t *testing.T) {
	elements := []service.ElementDefinition{
		{ID: "Patient"},
		{ID: "Patient.name"},
		{ID: "Patient.name.given"},
		{ID: "Patient.contact"},
		{ID: "Patient.contact.name"},
		{ID: "Patient.deceased[x]"},
		{ID: "Patient.identifier:mrn"},
	}
	idx, err := BuildElementIndex("Patient", elements)
	if err != nil {
		t.Fatalf("BuildElementIndex() error = %v", err)
	}
	if idx.Size() != len(elements) {
		t.Errorf("Size() = %d, want %d", idx.Size(), len(elements))
	}
	if idx.Get("Patient.contact.name") == nil {
		t.Error("Get(Patient.contact.name) = nil")
	}
	if idx.Get("Patient.missing") != nil {
		t.Error("Get(Patient.missing) should be nil")
	}

	var got []string
	for _, c := range idx.Children() {
		got = append(got, c.ID)
	}
	want := []string{"Patient.name", "Patient.contact", "Patient.deceased[x]"}
	if len(got) != len(want) {
		t.Fatalf("Children() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Children()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildElementIndex_MissingID(t *testing.T) {
	_, err := BuildElementIndex("Patient", []service.ElementDefinition{{ID: "Patient"}, {Path: "Patient.name"}})
	if !errors.Is(err, ErrStructural) {
		t.Errorf("error = %v, want ErrStructural", err)
	}
}

func TestSliceElements(t *testing.T) {
	elements := []service.ElementDefinition{
		{ID: "Patient.contact"},
		{ID: "Patient.contact.name"},
		{ID: "Patient.contactPoint"},
		{ID: "Patient.name"},
	}
	got := SliceElements(elements, "Patient.contact")
	if len(got) != 2 {
		t.Fatalf("SliceElements() returned %d elements, want 2", len(got))
	}
	if got[1].ID != "Patient.contact.name" {
		t.Errorf("SliceElements()[1] = %q", got[1].ID)
	}
}

func TestExpandElement(t *testing.T) {
	tests := []struct {
		name      string
		elem      service.ElementDefinition
		wantNames []string
		wantOf    string
	}{
		{
			name:      "plain",
			elem:      service.ElementDefinition{ID: "Patient.gender", Types: []service.TypeRef{{Code: "code"}}},
			wantNames: []string{"gender"},
		},
		{
			name: "choice",
			elem: service.ElementDefinition{ID: "Observation.value[x]", Types: []service.TypeRef{
				{Code: "Quantity", Kind: service.KindResource},
				{Code: "string"},
				{Code: "dateTime"},
			}},
			wantNames: []string{"valueQuantity", "valueString", "valueDateTime"},
			wantOf:    "value",
		},
		{
			name:      "reserved",
			elem:      service.ElementDefinition{ID: "Provenance.for", Types: []service.TypeRef{{Code: "Reference"}}},
			wantNames: []string{"for_fhir"},
		},
		{
			name:      "content reference",
			elem:      service.ElementDefinition{ID: "Questionnaire.item.item", ContentReference: "#Questionnaire.item"},
			wantNames: []string{"item"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := expandElement(&tt.elem)
			if len(props) != len(tt.wantNames) {
				t.Fatalf("expandElement() = %d properties, want %d", len(props), len(tt.wantNames))
			}
			for i, p := range props {
				if p.Name != tt.wantNames[i] {
					t.Errorf("props[%d].Name = %q, want %q", i, p.Name, tt.wantNames[i])
				}
				if p.OfMany != tt.wantOf {
					t.Errorf("props[%d].OfMany = %q, want %q", i, p.OfMany, tt.wantOf)
				}
			}
		})
	}
}

func TestMatchStrategies(t *testing.T) {
	tests := []struct {
		strategy MatchStrategy
		prop     Property
		want     string
	}{
		{DefaultMatchStrategies[0], Property{Name: "gender"}, "Patient.gender"},
		{DefaultMatchStrategies[1], Property{Name: "deceasedBoolean", OfMany: "deceased"}, "Patient.deceased[x]"},
		{DefaultMatchStrategies[1], Property{Name: "gender"}, ""},
		{DefaultMatchStrategies[2], Property{Name: "class_fhir"}, "Patient.class"},
		{DefaultMatchStrategies[2], Property{Name: "gender"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.strategy.Name+"/"+tt.prop.Name, func(t *testing.T) {
			if got := tt.strategy.ID("Patient", &tt.prop); got != tt.want {
				t.Errorf("%s.ID() = %q, want %q", tt.strategy.Name, got, tt.want)
			}
		})
	}
}

func TestScopeLookup_AncestorChain(t *testing.T) {
	outer, _ := BuildElementIndex("Encounter", []service.ElementDefinition{{ID: "Encounter"}, {ID: "Encounter.class"}})
	inner, _ := BuildElementIndex("Encounter.location", []service.ElementDefinition{{ID: "Encounter.location"}})
	sc := &scope{index: inner, parent: &scope{index: outer}}

	elem, strategy := sc.lookup(&Property{Name: "class_fhir"}, DefaultMatchStrategies)
	if elem == nil || elem.ID != "Encounter.class" {
		t.Fatalf("lookup() = %v, want Encounter.class", elem)
	}
	if strategy != "reserved" {
		t.Errorf("strategy = %q, want reserved", strategy)
	}
	if elem, _ := sc.lookup(&Property{Name: "nothing"}, DefaultMatchStrategies); elem != nil {
		t.Errorf("lookup(nothing) = %v, want nil", elem)
	}
}
