package htan

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/gofhir/gen3dict/gen3"
	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

func loadModel(t *testing.T) *Schema {
	t.Helper()
	f, err := os.Open("testdata/model.jsonld")
	require.NoError(t, err)
	defer f.Close()
	s, err := Parse(f)
	require.NoError(t, err)
	return s
}

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	return NewGenerator(loadModel(t), WithLogger(logger.New(&strings.Builder{}, logger.LevelNone)))
}

func TestUnderscore(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Patient", "patient"},
		{"HTANParticipantID", "htan_participant_id"},
		{"BulkRNA-seqLevel1", "bulk_rna_seq_level1"},
		{"AgeAtDiagnosis", "age_at_diagnosis"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Underscore(tt.in), tt.in)
	}
}

func TestNodeName(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{Node{ID: "bts:Patient", Label: "Patient"}, "patient"},
		{Node{ID: "bts:Biospecimen", Label: "Biospecimen"}, "biospecimen"},
		{Node{ID: "bts:Demographics", Label: "Demographics"}, "demographic"},
		{Node{ID: "bts:BulkRNA-seqLevel1"}, "bulk_rna_seq_level1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NodeName(&tt.node), tt.node.ID)
	}
	assert.Equal(t, "patients", Plural("patients"))
	assert.Equal(t, "biospecimens", Plural("biospecimen"))
}

func TestParse(t *testing.T) {
	s := loadModel(t)
	assert.Equal(t, 14, s.Len())

	demographics := s.Node("bts:Demographics")
	require.NotNil(t, demographics)
	assert.Equal(t, []string{"bts:Patient"}, []string(demographics.SubClassOf))
	assert.Equal(t, []string{"bts:Female"}, []string(s.Node("bts:Gender").RangeIncludes))
	assert.Nil(t, s.Node("bts:Nope"))

	_, err := Parse(strings.NewReader(`{"@graph": []}`))
	assert.Error(t, err)
	_, err = Parse(strings.NewReader(`{`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	data, err := os.ReadFile("testdata/model.jsonld")
	require.NoError(t, err)
	location := "mem://localhost/htan/model.jsonld"
	require.NoError(t, fs.Upload(ctx, location, 0o644, strings.NewReader(string(data))))

	s, err := Load(ctx, fs, location)
	require.NoError(t, err)
	assert.Equal(t, 14, s.Len())

	_, err = Load(ctx, fs, "mem://localhost/htan/missing.jsonld")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	s := loadModel(t)

	e, err := s.Describe("bts:Patient")
	require.NoError(t, err)
	assert.Equal(t, []string{"bts:AgeAtDiagnosis", "bts:Ethnicity", "bts:HTANParticipantID"}, e.Properties)
	// HispanicOrLatino is an enumeration value, not a subclass.
	assert.Equal(t, []string{"bts:Demographics"}, e.Subclasses)
	assert.Equal(t, []string{"bts:Component"}, e.Super)
	// Component is a superclass, so it is not a neighbor.
	assert.Equal(t, []string{"bts:Biospecimen", "bts:Demographics"}, e.Neighbors)
	assert.Equal(t, "A participant in a study.", e.Comment)

	_, err = s.Describe("bts:Nope")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestBuild_Patient(t *testing.T) {
	g := newGenerator(t)
	e, err := g.schema.Describe("bts:Patient")
	require.NoError(t, err)

	s, err := g.Build(e, nil)
	require.NoError(t, err)

	assert.Equal(t, "patient", s.Name)
	title, _ := s.Doc.Get("title")
	assert.Equal(t, "Patient", title)
	ns, _ := s.Doc.Get("namespace")
	assert.Equal(t, Namespace, ns)
	cat, _ := s.Doc.Get("category")
	assert.Equal(t, "clinical", cat)

	keys := gen3.Keys(s.Properties())
	assert.Equal(t, []string{"type", "subtype"}, keys[:2])
	assert.Equal(t, []string{
		"Gender", "biospecimens", "demographics", "AgeAtDiagnosis", "Ethnicity", "HTANParticipantID",
	}, keys[len(keys)-6:])

	sub, _ := s.Property("subtype").Get("enum")
	assert.Equal(t, []string{"Demographics"}, sub)
	enum, _ := s.Property("Ethnicity").Get("enum")
	assert.Equal(t, []string{"HispanicOrLatino", "NotHispanicOrLatino"}, enum)
	typ, _ := s.Property("HTANParticipantID").Get("type")
	assert.Equal(t, "string", typ)

	links := s.Links()
	require.Len(t, links, 1)
	name, _ := links[0].(*gen3.Object).Get("name")
	assert.Equal(t, "projects", name)
}

func TestGenerate_Neighbors(t *testing.T) {
	g := newGenerator(t)

	schemas, err := g.Generate(context.Background(), "bts:Patient")
	require.NoError(t, err)
	require.Len(t, schemas, 3)
	assert.Equal(t, "patient", schemas[0].Name)
	assert.Equal(t, "biospecimen", schemas[1].Name)
	assert.Equal(t, "demographic", schemas[2].Name)

	bio := schemas[1]
	assert.Contains(t, bio.Required(), "patients")
	links := bio.Links()
	require.Len(t, links, 2)
	first := links[0].(*gen3.Object)
	for key, want := range map[string]any{
		"name":         "patients",
		"backref":      "biospecimens",
		"label":        "refers_to",
		"target_type":  "patient",
		"multiplicity": "many_to_many",
		"required":     true,
	} {
		got, _ := first.Get(key)
		assert.Equal(t, want, got, key)
	}
	second, _ := links[1].(*gen3.Object).Get("multiplicity")
	assert.Equal(t, "one_to_many", second)
	ref, _ := bio.Property("patient").Get("$ref")
	assert.Equal(t, "_definitions.yaml#/to_one", ref)

	_, err = g.Generate(context.Background(), "bts:Nope")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestBuild_File(t *testing.T) {
	g := newGenerator(t)
	e, err := g.schema.Describe("bts:File")
	require.NoError(t, err)

	s, err := g.Build(e, nil)
	require.NoError(t, err)

	cat, _ := s.Doc.Get("category")
	assert.Equal(t, "data_file", cat)
	assert.Nil(t, s.Property("fileFormat"))
	enum, _ := s.Property("data_type").Get("enum")
	assert.Equal(t, []string{"bam", "fastq"}, enum)
	assert.NotNil(t, s.Property("data_format"))
	assert.NotNil(t, s.Property("data_category"))
	assert.Subset(t, s.Required(), []string{"data_type", "data_format", "data_category"})
	assert.Len(t, s.Links(), 2)

	out, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), "$ref: _definitions.yaml#/data_file_properties")
}

func TestGenerate_Cancelled(t *testing.T) {
	g := newGenerator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, "bts:Patient")
	assert.ErrorIs(t, err, context.Canceled)
}
