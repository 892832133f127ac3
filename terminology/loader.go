package terminology

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofhir/fhir/r4"
	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/viant/afs"
	"golang.org/x/sync/errgroup"
)

// LoadStats contains statistics about value-set loading.
type LoadStats struct {
	CodeSystemsLoaded int
	ValueSetsLoaded   int
	Skipped           int
	Errors            int
}

// CuratedPair locates a value set missing from the bulk document and the
// code system backing it.
type CuratedPair struct {
	FullURL    string
	ValueSet   string
	CodeSystem string
}

// CuratedValueSets is the fixed supplement loaded by LoadCurated.
var CuratedValueSets = []CuratedPair{
	{
		FullURL:    "http://hl7.org/fhir/ValueSet/research-study-prim-purp-type",
		ValueSet:   "http://hl7.org/fhir/R4/valueset-research-study-prim-purp-type.json",
		CodeSystem: "https://terminology.hl7.org/3.0.0/CodeSystem-research-study-prim-purp-type.json",
	},
	{
		FullURL:    "http://hl7.org/fhir/ValueSet/observation-interpretation",
		ValueSet:   "http://hl7.org/fhir/R4/valueset-observation-interpretation.json",
		CodeSystem: "https://terminology.hl7.org/3.0.0/CodeSystem-v3-ObservationInterpretation.json",
	},
	{
		FullURL:    "http://hl7.org/fhir/ValueSet/task-intent",
		ValueSet:   "http://hl7.org/fhir/R4/valueset-task-intent.json",
		CodeSystem: "http://hl7.org/fhir/R4/codesystem-task-intent.json",
	},
	{
		FullURL:    "http://hl7.org/fhir/ValueSet/task-code",
		ValueSet:   "http://hl7.org/fhir/R4/valueset-task-code.json",
		CodeSystem: "http://hl7.org/fhir/R4/codesystem-task-code.json",
	},
	{
		FullURL:    "http://terminology.hl7.org/ValueSet/v2-0487",
		ValueSet:   "https://terminology.hl7.org/3.0.0/ValueSet-v2-0487.json",
		CodeSystem: "https://terminology.hl7.org/3.0.0/CodeSystem-v2-0487.json",
	},
	{
		FullURL:    "http://terminology.hl7.org/ValueSet/v3-FamilyMember",
		ValueSet:   "https://terminology.hl7.org/3.0.0/ValueSet-v3-FamilyMember.json",
		CodeSystem: "https://terminology.hl7.org/3.0.0/CodeSystem-v3-RoleCode.json",
	},
}

// Loader fills a Store from a bulk document and the curated supplement.
type Loader struct {
	store   Store
	fs      afs.Service
	log     *logger.Logger
	curated []CuratedPair
}

// LoaderOption configures the Loader.
type LoaderOption func(*Loader)

// WithLoaderFileSystem sets the storage service used to download the
// curated supplement.
func WithLoaderFileSystem(fs afs.Service) LoaderOption {
	return func(l *Loader) {
		l.fs = fs
	}
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(log *logger.Logger) LoaderOption {
	return func(l *Loader) {
		l.log = log
	}
}

// WithCurated replaces the curated supplement list.
func WithCurated(pairs []CuratedPair) LoaderOption {
	return func(l *Loader) {
		l.curated = pairs
	}
}

// NewLoader creates a loader writing into store.
func NewLoader(store Store, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:   store,
		fs:      afs.New(),
		log:     logger.Default(),
		curated: CuratedValueSets,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads a bulk document from any location afs can read.
func (l *Loader) LoadFile(ctx context.Context, location string) (*LoadStats, error) {
	raw, err := l.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	return l.LoadBundle(ctx, bytes.NewReader(raw))
}

// LoadBundle loads every ValueSet and CodeSystem entry of a Bundle. Both
// plain FHIR JSON and the XML-derived shape, where scalars are wrapped in
// {"@value": ...} and resources are keyed by their type, are accepted.
func (l *Loader) LoadBundle(ctx context.Context, r io.Reader) (*LoadStats, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}

	bundle, _ := normalizeJSON("", doc).(map[string]any)
	if inner, ok := bundle["Bundle"].(map[string]any); ok {
		bundle = inner
	} else if rt, _ := bundle["resourceType"].(string); rt != "Bundle" {
		return nil, fmt.Errorf("not a Bundle (resourceType: %q)", rt)
	}

	entries, _ := bundle["entry"].([]any)
	stats := &LoadStats{}
	for _, item := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		raw, _ := item.(map[string]any)
		entry, err := entryFromBundle(raw)
		if err != nil {
			stats.Errors++
			l.log.Warn("skipping bundle entry: %v", err)
			continue
		}
		if entry == nil {
			stats.Skipped++
			continue
		}
		if err := l.store.Put(ctx, entry); err != nil {
			return stats, err
		}
		l.log.Debug("%s, %s, %s, %s", entry.ResourceType, entry.ID, entry.FullURL, entry.URL)
		countEntry(stats, entry)
	}
	return stats, nil
}

// LoadCurated downloads the curated value sets and their code systems
// concurrently and stores them, replacing any existing entries. Each value
// set's first include is rewritten to reference its code system.
func (l *Loader) LoadCurated(ctx context.Context) (*LoadStats, error) {
	fetched := make([][]*Entry, len(l.curated))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, pair := range l.curated {
		g.Go(func() error {
			entries, err := l.fetchCurated(gctx, pair)
			if err != nil {
				return fmt.Errorf("curated %s: %w", pair.FullURL, err)
			}
			fetched[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &LoadStats{}
	for _, entries := range fetched {
		for _, entry := range entries {
			if err := l.store.Put(ctx, entry); err != nil {
				return stats, err
			}
			countEntry(stats, entry)
		}
	}
	return stats, nil
}

func (l *Loader) fetchCurated(ctx context.Context, pair CuratedPair) ([]*Entry, error) {
	l.log.Debug("loading %s", pair.ValueSet)
	vsRaw, err := l.fs.DownloadWithURL(ctx, pair.ValueSet)
	if err != nil {
		return nil, err
	}
	var vs r4.ValueSet
	if err := json.Unmarshal(vsRaw, &vs); err != nil {
		return nil, fmt.Errorf("parse value set: %w", err)
	}
	if vs.Compose == nil || len(vs.Compose.Include) == 0 || vs.Compose.Include[0].System == nil {
		return nil, fmt.Errorf("value set %s has no include system", pair.ValueSet)
	}
	system := *vs.Compose.Include[0].System

	var body map[string]any
	if err := json.Unmarshal(vsRaw, &body); err != nil {
		return nil, err
	}
	compose, _ := body["compose"].(map[string]any)
	includes, _ := compose["include"].([]any)
	if len(includes) == 0 {
		return nil, fmt.Errorf("value set %s has no include list", pair.ValueSet)
	}
	first, _ := includes[0].(map[string]any)
	if first == nil {
		first = map[string]any{}
	}
	l.log.Debug("replacing include of %s with system %s", pair.FullURL, system)
	first["system"] = system
	compose["include"] = []any{first}
	vsDoc, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	l.log.Debug("loading %s", pair.CodeSystem)
	csRaw, err := l.fs.DownloadWithURL(ctx, pair.CodeSystem)
	if err != nil {
		return nil, err
	}
	var cs r4.CodeSystem
	if err := json.Unmarshal(csRaw, &cs); err != nil {
		return nil, fmt.Errorf("parse code system: %w", err)
	}

	return []*Entry{
		{
			FullURL:      pair.FullURL,
			ResourceType: ResourceValueSet,
			ID:           str(vs.Id),
			URL:          str(vs.Url),
			Resource:     vsDoc,
		},
		{
			FullURL:      system,
			ResourceType: ResourceCodeSystem,
			ID:           str(cs.Id),
			URL:          str(cs.Url),
			Resource:     csRaw,
		},
	}, nil
}

func countEntry(stats *LoadStats, entry *Entry) {
	if entry.ResourceType == ResourceCodeSystem {
		stats.CodeSystemsLoaded++
	} else {
		stats.ValueSetsLoaded++
	}
}

// entryFromBundle builds an Entry from a normalised bundle entry. Resources
// other than ValueSet and CodeSystem yield nil.
func entryFromBundle(raw map[string]any) (*Entry, error) {
	if raw == nil {
		return nil, fmt.Errorf("entry is not an object")
	}
	resource, _ := raw["resource"].(map[string]any)
	if resource == nil {
		return nil, fmt.Errorf("entry has no resource")
	}
	rt, _ := resource["resourceType"].(string)
	if rt == "" && len(resource) == 1 {
		for k, v := range resource {
			body, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("resource %s is not an object", k)
			}
			rt, resource = k, body
		}
		resource["resourceType"] = rt
	}
	if rt != ResourceValueSet && rt != ResourceCodeSystem {
		return nil, nil
	}

	url, _ := resource["url"].(string)
	fullURL, _ := raw["fullUrl"].(string)
	if fullURL == "" {
		fullURL = url
	}
	id, _ := resource["id"].(string)
	body, err := json.Marshal(resource)
	if err != nil {
		return nil, err
	}
	return &Entry{FullURL: fullURL, ResourceType: rt, ID: id, URL: url, Resource: body}, nil
}

var (
	repeatingKeys = map[string]bool{
		"entry": true, "include": true, "exclude": true, "concept": true,
		"filter": true, "property": true, "coding": true, "contains": true,
		"designation": true, "extension": true, "contact": true, "telecom": true,
		"identifier": true, "jurisdiction": true, "useContext": true,
	}
	booleanKeys = map[string]bool{
		"experimental": true, "caseSensitive": true, "compositional": true,
		"versionNeeded": true, "immutable": true, "inactive": true,
		"lockedDate": true, "abstract": true, "valueBoolean": true,
	}
	numberKeys = map[string]bool{
		"count": true, "total": true, "offset": true,
		"valueInteger": true, "valueDecimal": true,
	}
)

// normalizeJSON rewrites the XML-derived JSON shape into plain FHIR JSON:
// {"@value": x} collapses to x, attribute keys and narrative are dropped,
// repeating elements always become arrays and typed scalars are restored
// from their string form.
func normalizeJSON(key string, v any) any {
	switch t := v.(type) {
	case map[string]any:
		if val, ok := t["@value"]; ok {
			return normalizeScalar(key, val)
		}
		out := make(map[string]any, len(t))
		for k, child := range t {
			if strings.HasPrefix(k, "@") {
				continue
			}
			if _, narrative := child.(map[string]any); narrative && k == "text" {
				continue
			}
			nv := normalizeJSON(k, child)
			if _, isList := nv.([]any); repeatingKeys[k] && !isList {
				nv = []any{nv}
			}
			out[k] = nv
		}
		if vs, ok := out["valueSet"]; ok && (key == "include" || key == "exclude") {
			if _, isList := vs.([]any); !isList {
				out["valueSet"] = []any{vs}
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeJSON(key, item)
		}
		return out
	default:
		return normalizeScalar(key, t)
	}
}

func normalizeScalar(key string, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch {
	case booleanKeys[key]:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case numberKeys[key]:
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return json.Number(s)
		}
	}
	return s
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
