package main

import (
	"context"
	"fmt"
	"io"
	"time"

	gd "github.com/gofhir/gen3dict"
	"github.com/gofhir/gen3dict/config"
	"github.com/gofhir/gen3dict/engine"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
)

type transformFlags struct {
	resources     string
	output        string
	failFast      bool
	force         bool
	noIndex       bool
	stats         bool
	timeout       time.Duration
	resourceLimit time.Duration
}

func transformCmd(g *globals) *cobra.Command {
	f := &transformFlags{}
	cmd := &cobra.Command{
		Use:   "transform [RESOURCE...]",
		Short: "Write one Gen3 schema per configured resource",
		Long: `Transform walks the profile of every configured resource, or only the
named ones, and writes {output}/{resource}.yaml plus a dump.json index.
The output directory must exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd.Context(), cmd.OutOrStdout(), g, f, args)
		},
	}
	cmd.Flags().StringVarP(&f.resources, "resources", "r", "config.yaml", "Resource configuration document")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output directory (default from settings)")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", false, "Stop at the first failing resource")
	cmd.Flags().BoolVar(&f.force, "force", false, "Rewrite schemas whose content is unchanged")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "Print run statistics")
	cmd.Flags().BoolVar(&f.noIndex, "no-index", false, "Do not write the dump.json index")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Limit for the whole run (0 for none)")
	cmd.Flags().DurationVar(&f.resourceLimit, "resource-timeout", 0, "Limit per resource (0 for none)")
	return cmd
}

func runTransform(ctx context.Context, stdout io.Writer, g *globals, f *transformFlags, names []string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	settings, log, err := g.load()
	if err != nil {
		return err
	}
	version, err := g.version()
	if err != nil {
		return err
	}
	resources, err := config.LoadResources(ctx, afs.New(), localURL(f.resources))
	if err != nil {
		return err
	}

	profiles, err := profileStore(ctx, settings, version, log)
	if err != nil {
		return err
	}
	valueSets, closeStore, err := valueSetResolver(ctx, settings, log)
	defer closeStore()
	if err != nil {
		return err
	}

	output := f.output
	if output == "" {
		output = settings.OutputDir
	}
	gen := engine.New(profiles, valueSets,
		gd.WithOutputDir(localURL(output)),
		gd.WithFHIRVersion(version),
		gd.WithMaxConcepts(settings.MaxConcepts),
		gd.WithFailFast(f.failFast),
		gd.WithSkipUnchanged(!f.force),
		gd.WithIndex(!f.noIndex, gd.DefaultOptions().IndexName),
		gd.WithResourceTimeout(f.resourceLimit),
	)
	gen.SetLogger(log)

	result, err := gen.Run(ctx, resources, names...)
	if result != nil {
		renderResult(stdout, result)
	}
	if f.stats {
		renderStats(stdout, gen.Metrics().Snapshot())
	}
	if err != nil {
		return err
	}
	if failed := result.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d resource(s) failed: %v", len(failed), failed)
	}
	return nil
}

func renderResult(w io.Writer, result *gd.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Resource", "File", "Properties", "Status"})
	for _, o := range result.Outcomes {
		t.AppendRow(table.Row{o.Resource, o.File, o.Properties, status(o)})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()

	for _, issue := range result.Issues {
		fmt.Fprintln(w, issue.String())
	}
	if result.Index != "" {
		fmt.Fprintf(w, "index: %s\n", result.Index)
	}
}

func status(o gd.Outcome) string {
	switch {
	case o.Failed:
		return "failed"
	case o.Unchanged:
		return "unchanged"
	case o.Written:
		return "written"
	default:
		return "skipped"
	}
}

func renderStats(w io.Writer, s gd.Snapshot) {
	fmt.Fprintf(w, "resources: %d (%d failed), written %d, unchanged %d\n",
		s.ResourcesTotal, s.ResourcesFailed, s.FilesWritten, s.FilesUnchanged)
	fmt.Fprintf(w, "profiles: %d fetched, %d cache hits (%.0f%%), %d primitives\n",
		s.ProfilesFetched, s.CacheHits, s.CacheHitRate*100, s.Primitives)
	fmt.Fprintf(w, "value sets: %d resolved, %d missing, %d degraded properties\n",
		s.ValueSetsResolved, s.ValueSetsMissing, s.Degradations)
	for _, st := range s.Stages {
		fmt.Fprintf(w, "stage %s: %d runs, %d failed, avg %s\n", st.Name, st.Invocations, st.Failures, st.AvgTime)
	}
}
