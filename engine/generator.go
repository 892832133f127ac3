// Package engine runs the transformation of configured resources into Gen3
// node schemas and writes them out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gd "github.com/gofhir/gen3dict"
	"github.com/gofhir/gen3dict/config"
	"github.com/gofhir/gen3dict/gen3"
	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/gofhir/gen3dict/registry"
	"github.com/gofhir/gen3dict/service"
	"github.com/gofhir/gen3dict/terminology"
	"github.com/gofhir/gen3dict/walker"
	"github.com/viant/afs"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrNoOutputDir is returned when the output directory does not exist.
var ErrNoOutputDir = errors.New("output directory does not exist")

type profileCounter interface {
	Stats() registry.Stats
}

type valueSetCounter interface {
	Stats() terminology.ResolverStats
}

// Generator transforms configured resources one at a time, in configuration
// order, and writes one schema per resource plus an aggregate index.
type Generator struct {
	options *gd.Options

	profiles  service.ProfileResolver
	valueSets service.ValueSetResolver

	walker    *walker.Walker
	assembler *gen3.Assembler
	fs        afs.Service
	log       *logger.Logger

	metrics *gd.Metrics
}

// New creates a Generator resolving profiles and value sets through the
// given services. valueSets may be nil, in which case every binding
// degrades.
func New(profiles service.ProfileResolver, valueSets service.ValueSetResolver, opts ...gd.Option) *Generator {
	g := &Generator{
		options:   gd.Apply(opts...),
		profiles:  profiles,
		valueSets: valueSets,
		fs:        afs.New(),
		log:       logger.Default(),
		metrics:   gd.NewMetrics(),
	}
	g.build()
	return g
}

func (g *Generator) build() {
	g.walker = walker.New(g.profiles, walker.WithLogger(g.log))
	g.assembler = gen3.NewAssembler(gen3.NewNormalizer(g.valueSets,
		gen3.WithLogger(g.log),
		gen3.WithMaxConcepts(g.options.MaxConcepts),
	))
}

// SetFileSystem replaces the storage service used for output.
func (g *Generator) SetFileSystem(fs afs.Service) {
	g.fs = fs
}

// SetLogger sets the logger.
func (g *Generator) SetLogger(l *logger.Logger) {
	g.log = l
	g.build()
}

// Walk resolves and walks the profile of a configured resource, then drops
// the paths its exclude patterns match.
func (g *Generator) Walk(ctx context.Context, cfg *config.Resource) (*walker.Table, error) {
	name := cfg.Name
	if cfg.Source != "" {
		// A source URL is authoritative; the resource name may differ from
		// the profile name.
		name = ""
	}
	table, err := g.walker.Walk(ctx, name, cfg.Source)
	if err != nil {
		return nil, err
	}
	if len(cfg.Properties.Exclude) > 0 {
		if n := table.Prune(walker.NewPathFilter(cfg.Properties.Exclude)); n > 0 {
			g.log.Debug("%s: excluded %d paths", cfg.Name, n)
		}
	}
	stats := g.walker.Stats()
	g.log.Debug("%s: walked %d properties across %d profiles (%d recursion stops)",
		cfg.Name, stats.Properties, stats.ProfilesResolved, stats.RecursionStops)
	return table, nil
}

// Run transforms the named resources, or every configured resource when no
// names are given. Per-resource failures are recorded in the result and do
// not stop the run unless FailFast is set. The returned error is reserved
// for failures that prevent the run as a whole.
func (g *Generator) Run(ctx context.Context, resources *config.Resources, names ...string) (*gd.Result, error) {
	if resources == nil || resources.Len() == 0 {
		return nil, fmt.Errorf("%w: no resources configured", config.ErrInvalid)
	}
	out := NewWriter(g.fs, g.options.OutputDir, g.options.SkipUnchanged, g.log)
	if err := out.EnsureDir(ctx, false); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = resources.Names()
	}

	profilesBefore, valueSetsBefore := g.counters()
	result := gd.NewResult()
	index := orderedmap.New[string, *gen3.Schema]()

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			g.addIssue(result, gd.NewIssue(gd.SeverityFatal, gd.IssueTypeTimeout).
				For(name).Diagnostics(err.Error()).Build())
			return result, err
		}
		cfg := resources.Get(name)
		if cfg == nil {
			g.log.Error("%s: no resource configuration, skipping", name)
			g.addIssue(result, gd.Warning(gd.IssueTypeNotFound).
				For(name).Diagnostics("no resource configuration").Build())
			continue
		}

		schema, outcome := g.generate(ctx, cfg, out, result)
		result.AddOutcome(outcome)
		if schema != nil {
			index.Set(name+".yaml", schema)
		}
		if outcome.Failed && g.options.FailFast {
			g.log.Warn("stopping after %s failed", name)
			break
		}
	}

	if g.options.WriteIndex && index.Len() > 0 {
		start := time.Now()
		var o gd.Outcome
		err := out.WriteJSON(ctx, g.options.IndexName, index, &o)
		g.metrics.RecordStage(gd.StageIndex, time.Since(start), err != nil)
		if err != nil {
			g.addIssue(result, gd.Error(gd.IssueTypeProcessing).
				Stage(gd.StageIndex).Diagnostics(err.Error()).Build())
		} else {
			result.Index = o.File
		}
	}

	g.recordCounters(profilesBefore, valueSetsBefore)
	return result, nil
}

// generate produces, and writes, the schema of one resource.
func (g *Generator) generate(ctx context.Context, cfg *config.Resource, out *Writer, result *gd.Result) (*gen3.Schema, gd.Outcome) {
	start := time.Now()
	outcome := gd.Outcome{Resource: cfg.Name}
	if g.options.ResourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.options.ResourceTimeout)
		defer cancel()
	}

	fail := func(stage string, err error) (*gen3.Schema, gd.Outcome) {
		g.log.Error("%s: %v", cfg.Name, err)
		g.addIssue(result, issueFor(cfg.Name, stage, err))
		outcome.Failed = true
		g.metrics.RecordResource(time.Since(start), false)
		return nil, outcome
	}

	stageStart := time.Now()
	table, err := g.Walk(ctx, cfg)
	g.metrics.RecordStage(gd.StageWalk, time.Since(stageStart), err != nil)
	if err != nil {
		return fail(gd.StageWalk, err)
	}

	stageStart = time.Now()
	schema, err := g.assembler.Assemble(ctx, cfg.Name, cfg, table)
	g.metrics.RecordStage(gd.StageAssemble, time.Since(stageStart), err != nil)
	if err != nil {
		return fail(gd.StageAssemble, err)
	}
	for _, d := range schema.Degraded {
		g.metrics.RecordDegradation()
		g.addIssue(result, gd.Warning(degradationType(d.Comment)).
			For(cfg.Name).At(d.Property).Stage(gd.StageAssemble).Diagnostics(d.Comment).Build())
	}
	outcome.Properties = schema.Properties().Len()

	stageStart = time.Now()
	err = out.WriteYAML(ctx, cfg.Name, schema, &outcome)
	g.metrics.RecordStage(gd.StageWrite, time.Since(stageStart), err != nil)
	if err != nil {
		return fail(gd.StageWrite, err)
	}
	g.metrics.RecordWrite(outcome.Written)
	if outcome.Written {
		g.log.Info("%s: wrote %s", cfg.Name, outcome.File)
	} else {
		g.log.Info("%s: %s unchanged", cfg.Name, outcome.File)
	}

	g.metrics.RecordResource(time.Since(start), true)
	return schema, outcome
}

func (g *Generator) addIssue(result *gd.Result, issue gd.Issue) {
	g.metrics.RecordIssue(issue.Severity)
	result.AddIssue(issue)
}

func (g *Generator) counters() (registry.Stats, terminology.ResolverStats) {
	var p registry.Stats
	var v terminology.ResolverStats
	if c, ok := g.profiles.(profileCounter); ok {
		p = c.Stats()
	}
	if c, ok := g.valueSets.(valueSetCounter); ok {
		v = c.Stats()
	}
	return p, v
}

func (g *Generator) recordCounters(p0 registry.Stats, v0 terminology.ResolverStats) {
	p, v := g.counters()
	g.metrics.RecordProfiles(p.Fetched-p0.Fetched, p.CacheHits-p0.CacheHits, p.Primitives)
	g.metrics.RecordValueSets(
		(v.Resolved+v.Truncated)-(v0.Resolved+v0.Truncated),
		v.Misses-v0.Misses,
	)
}

// issueFor classifies a per-resource failure.
func issueFor(resource, stage string, err error) gd.Issue {
	code := gd.IssueTypeProcessing
	var cfgErr *gen3.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		b := gd.Error(gd.IssueTypeInvalid).For(resource).Stage(stage).Diagnostics(err.Error())
		if len(cfgErr.Missing) > 0 {
			b.AtPaths(cfgErr.Missing...)
		} else if len(cfgErr.Collision) > 0 {
			b.AtPaths(cfgErr.Collision...)
		}
		return b.Build()
	case errors.Is(err, gen3.ErrConfig):
		code = gd.IssueTypeInvalid
	case errors.Is(err, walker.ErrStructural):
		code = gd.IssueTypeStructure
	case errors.Is(err, service.ErrNotFound):
		code = gd.IssueTypeNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = gd.IssueTypeTimeout
	}
	return gd.Error(code).For(resource).Stage(stage).Diagnostics(err.Error()).Build()
}

func degradationType(comment string) gd.IssueType {
	if strings.HasPrefix(comment, "More-than-") {
		return gd.IssueTypeTooCostly
	}
	return gd.IssueTypeCodeInvalid
}

// Metrics returns the generator's metrics.
func (g *Generator) Metrics() *gd.Metrics {
	return g.metrics
}

// Options returns the generator's options.
func (g *Generator) Options() *gd.Options {
	return g.options
}
