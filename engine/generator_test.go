package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	gd "github.com/gofhir/gen3dict"
	"github.com/gofhir/gen3dict/config"
	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/gofhir/gen3dict/service"
	"github.com/viant/afs"
)

const (
	genderVS = "http://hl7.org/fhir/ValueSet/administrative-gender"
	statusVS = "http://hl7.org/fhir/ValueSet/observation-status"
	loincVS  = "http://loinc.org/vs"
)

type fakeProfiles map[string]*service.StructureDefinition

func (f fakeProfiles) ResolveProfile(ctx context.Context, name, url string) (*service.StructureDefinition, error) {
	if name == "" {
		name = url[strings.LastIndex(url, "/")+1:]
	}
	if sd, ok := f[name]; ok {
		return sd, nil
	}
	return nil, fmt.Errorf("%w: %s", service.ErrNotFound, name)
}

type fakeValueSets map[string][]string

func (f fakeValueSets) ResolveValueSet(ctx context.Context, url string) (*service.Concepts, error) {
	url, _, _ = strings.Cut(url, "|")
	values, ok := f[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", service.ErrNotFound, url)
	}
	c := &service.Concepts{ValueSet: url, Source: url, Total: len(values)}
	for _, v := range values {
		c.Concepts = append(c.Concepts, service.Concept{Code: v})
	}
	return c, nil
}

func el(id string, min int, max string, types ...string) service.ElementDefinition {
	e := service.ElementDefinition{ID: id, Path: id, Min: min, Max: max, Definition: "Definition of " + id}
	for _, code := range types {
		e.Types = append(e.Types, service.TypeRef{Code: code, Kind: service.ClassifyType(code)})
	}
	return e
}

func bound(e service.ElementDefinition, valueSet string) service.ElementDefinition {
	e.Binding = &service.Binding{Strength: "required", ValueSet: valueSet}
	return e
}

func profile(name string, elements ...service.ElementDefinition) *service.StructureDefinition {
	return &service.StructureDefinition{
		ID: name, Name: name, Type: name, Description: name + " resource.",
		Snapshot: append([]service.ElementDefinition{el(name, 0, "*")}, elements...),
	}
}

func testProfiles() fakeProfiles {
	return fakeProfiles{
		"Patient": profile("Patient",
			el("Patient.active", 0, "1", "boolean"),
			bound(el("Patient.gender", 0, "1", "code"), genderVS),
			el("Patient.birthDate", 0, "1", "date"),
		),
		"Observation": profile("Observation",
			bound(el("Observation.status", 1, "1", "code"), statusVS),
			bound(el("Observation.code", 1, "1", "CodeableConcept"), loincVS),
			el("Observation.subject", 1, "1", "Reference"),
		),
		"Reference": profile("Reference",
			el("Reference.reference", 0, "1", "string"),
			el("Reference.display", 0, "1", "string"),
		),
	}
}

func testValueSets() fakeValueSets {
	return fakeValueSets{
		genderVS: {"male", "female", "other", "unknown"},
		statusVS: {"registered", "final"},
	}
}

const testResources = `
Patient:
  category: administrative
  properties:
    include: [gender, birthDate]
    exclude: [active]
Observation:
  source: http://hl7.org/fhir/StructureDefinition/Observation
  properties:
    include: [status, code, subject.reference]
`

func quiet() *logger.Logger {
	return logger.New(&strings.Builder{}, logger.LevelNone)
}

// outputDir returns a fresh, existing in-memory output directory.
func outputDir(t *testing.T) string {
	t.Helper()
	dir := "mem://localhost/" + strings.ReplaceAll(t.Name(), "/", "_")
	if err := afs.New().Create(context.Background(), dir, os.ModeDir|0o755, true); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	return dir
}

func newGenerator(t *testing.T, opts ...gd.Option) *Generator {
	t.Helper()
	g := New(testProfiles(), testValueSets(), append([]gd.Option{gd.WithOutputDir(outputDir(t))}, opts...)...)
	g.SetLogger(quiet())
	return g
}

func resources(t *testing.T, doc string) *config.Resources {
	t.Helper()
	res, err := config.ParseResources([]byte(doc))
	if err != nil {
		t.Fatalf("ParseResources failed: %v", err)
	}
	return res
}

func download(t *testing.T, location string) string {
	t.Helper()
	data, err := afs.New().DownloadWithURL(context.Background(), location)
	if err != nil {
		t.Fatalf("failed to read %s: %v", location, err)
	}
	return string(data)
}

func TestNew(t *testing.T) {
	g := New(testProfiles(), nil)

	if g.Options() == nil {
		t.Fatal("Options should not be nil")
	}
	if g.Options().OutputDir != "schemas" {
		t.Errorf("OutputDir = %q; want schemas", g.Options().OutputDir)
	}
	if g.Metrics() == nil {
		t.Error("Metrics should not be nil")
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t)

	result, err := g.Run(ctx, resources(t, testResources))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Run should succeed, issues: %v", result.Issues)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("len(Outcomes) = %d; want 2", len(result.Outcomes))
	}

	patient := result.Outcomes[0]
	if patient.Resource != "Patient" || !patient.Written || patient.Digest == "" {
		t.Errorf("Patient outcome = %+v", patient)
	}
	doc := download(t, patient.File)
	for _, want := range []string{
		"$schema: http://json-schema.org/draft-04/schema#\n",
		"id: Patient\n",
		"category: administrative\n",
		"    - male\n",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("Patient.yaml missing %q:\n%s", want, doc)
		}
	}

	obs := download(t, result.Outcomes[1].File)
	if !strings.Contains(obs, "subject_reference") {
		t.Errorf("Observation.yaml should contain subject_reference:\n%s", obs)
	}
	if !strings.Contains(obs, "No-codeset-found-for-"+loincVS) {
		t.Errorf("Observation.yaml should note the missing code set:\n%s", obs)
	}

	index := download(t, result.Index)
	p, o := strings.Index(index, `"Patient.yaml"`), strings.Index(index, `"Observation.yaml"`)
	if p < 0 || o < 0 || p > o {
		t.Errorf("index should list Patient then Observation:\n%s", index)
	}
}

func TestRun_RecordsDegradations(t *testing.T) {
	g := newGenerator(t)

	result, err := g.Run(context.Background(), resources(t, testResources))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	warnings := result.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("Warnings() = %v; want one degradation", warnings)
	}
	w := warnings[0]
	if w.Code != gd.IssueTypeCodeInvalid || w.Resource != "Observation" || w.Expression[0] != "code" {
		t.Errorf("degradation issue = %+v", w)
	}
	if g.Metrics().Degradations() != 1 {
		t.Errorf("Degradations() = %d; want 1", g.Metrics().Degradations())
	}
}

func TestRun_SkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t)
	res := resources(t, testResources)

	first, err := g.Run(ctx, res)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	second, err := g.Run(ctx, res)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i, o := range second.Outcomes {
		if o.Written || !o.Unchanged {
			t.Errorf("second run outcome %d = %+v; want unchanged", i, o)
		}
		if o.Digest != first.Outcomes[i].Digest {
			t.Errorf("digest changed for %s", o.Resource)
		}
	}
	if got := g.Metrics().FilesUnchanged(); got != 2 {
		t.Errorf("FilesUnchanged() = %d; want 2", got)
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	g := newGenerator(t)
	doc := `
Specimen:
  properties:
    include: [type]
Patient:
  properties:
    include: [gender]
`
	result, err := g.Run(context.Background(), resources(t, doc))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Valid {
		t.Error("result should be invalid")
	}
	if failed := result.Failed(); len(failed) != 1 || failed[0] != "Specimen" {
		t.Errorf("Failed() = %v; want [Specimen]", failed)
	}
	if !result.Outcomes[1].Written {
		t.Error("Patient should still be written")
	}
	errs := result.Errors()
	if len(errs) != 1 || errs[0].Code != gd.IssueTypeNotFound || errs[0].Stage != gd.StageWalk {
		t.Errorf("Errors() = %+v", errs)
	}
	if g.Metrics().ResourcesFailed() != 1 {
		t.Errorf("ResourcesFailed() = %d; want 1", g.Metrics().ResourcesFailed())
	}
}

func TestRun_MissingIncludePath(t *testing.T) {
	g := newGenerator(t)
	doc := `
Patient:
  properties:
    include: [gender, active, maritalStatus]
    exclude: [active]
`
	result, err := g.Run(context.Background(), resources(t, doc))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	errs := result.Errors()
	if len(errs) != 1 {
		t.Fatalf("Errors() = %v", errs)
	}
	if errs[0].Code != gd.IssueTypeInvalid {
		t.Errorf("Code = %s; want invalid", errs[0].Code)
	}
	if got := strings.Join(errs[0].Expression, ","); got != "active,maritalStatus" {
		t.Errorf("Expression = %q", got)
	}
	if !strings.Contains(errs[0].Diagnostics, "available paths") {
		t.Errorf("Diagnostics should list available paths: %s", errs[0].Diagnostics)
	}
}

func TestRun_FailFast(t *testing.T) {
	g := newGenerator(t, gd.WithFailFast(true))
	doc := `
Specimen:
  properties:
    include: [type]
Patient:
  properties:
    include: [gender]
`
	result, err := g.Run(context.Background(), resources(t, doc))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Outcomes) != 1 {
		t.Errorf("len(Outcomes) = %d; want 1", len(result.Outcomes))
	}
	if result.Index != "" {
		t.Errorf("no index should be written, got %s", result.Index)
	}
}

func TestRun_UnconfiguredName(t *testing.T) {
	g := newGenerator(t)

	result, err := g.Run(context.Background(), resources(t, testResources), "Encounter", "Patient")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("a missing resource configuration is recoverable: %v", result.Issues)
	}
	if len(result.Outcomes) != 1 || result.Outcomes[0].Resource != "Patient" {
		t.Errorf("Outcomes = %+v", result.Outcomes)
	}
	w := result.Warnings()
	if len(w) != 1 || w[0].Resource != "Encounter" || w[0].Code != gd.IssueTypeNotFound {
		t.Errorf("Warnings() = %+v", w)
	}
}

func TestRun_Unrecoverable(t *testing.T) {
	ctx := context.Background()

	g := New(testProfiles(), nil, gd.WithOutputDir("mem://localhost/does/not/exist"))
	g.SetLogger(quiet())
	if _, err := g.Run(ctx, resources(t, testResources)); !errors.Is(err, ErrNoOutputDir) {
		t.Errorf("Run() error = %v; want ErrNoOutputDir", err)
	}

	if _, err := g.Run(ctx, config.NewResources()); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("Run() error = %v; want ErrInvalid", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	g := newGenerator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := g.Run(ctx, resources(t, testResources))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v; want context.Canceled", err)
	}
	if len(result.Errors()) != 1 || result.Errors()[0].Code != gd.IssueTypeTimeout {
		t.Errorf("Errors() = %+v", result.Errors())
	}
}

func TestRun_ResourceTimeout(t *testing.T) {
	g := newGenerator(t, gd.WithResourceTimeout(time.Nanosecond))

	result, err := g.Run(context.Background(), resources(t, testResources))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Errors()) == 0 {
		t.Fatal("expected per-resource timeouts")
	}
	for _, issue := range result.Errors() {
		if issue.Code != gd.IssueTypeTimeout {
			t.Errorf("issue = %+v; want timeout", issue)
		}
	}
}

func TestWalk_Exclude(t *testing.T) {
	g := newGenerator(t)
	res := resources(t, testResources)

	table, err := g.Walk(context.Background(), res.Get("Patient"))
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if table.Has("active") {
		t.Error("excluded path should be pruned")
	}
	if !table.Has("gender") {
		t.Error("gender should be walked")
	}
}

func TestRun_NilValueSets(t *testing.T) {
	g := New(testProfiles(), nil, gd.WithOutputDir(outputDir(t)), gd.WithIndex(false, ""))
	g.SetLogger(quiet())

	result, err := g.Run(context.Background(), resources(t, testResources), "Patient")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Index != "" {
		t.Errorf("index disabled, got %s", result.Index)
	}
	doc := download(t, result.Outcomes[0].File)
	if !strings.Contains(doc, "No-codeset-found-for-"+genderVS) {
		t.Errorf("gender should degrade without a resolver:\n%s", doc)
	}
}
