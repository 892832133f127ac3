package main

import (
	"fmt"
	"io"

	"github.com/gofhir/gen3dict/config"
	"github.com/gofhir/gen3dict/engine"
	"github.com/gofhir/gen3dict/walker"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
)

func pathsCmd(g *globals) *cobra.Command {
	var resourcesFile, source string
	cmd := &cobra.Command{
		Use:   "paths RESOURCE",
		Short: "List the property paths a resource exposes",
		Long: `Paths walks a resource profile and prints every path that can be named
in a resource configuration's include list. The resource is looked up in
the configuration document when it is present there; otherwise its base
profile, or --source, is walked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, log, err := g.load()
			if err != nil {
				return err
			}
			version, err := g.version()
			if err != nil {
				return err
			}

			cfg := &config.Resource{Name: args[0], Source: source}
			if resourcesFile != "" {
				resources, err := config.LoadResources(ctx, afs.New(), localURL(resourcesFile))
				if err != nil {
					return err
				}
				if configured := resources.Get(args[0]); configured != nil {
					cfg = configured
				}
			}

			profiles, err := profileStore(ctx, settings, version, log)
			if err != nil {
				return err
			}
			gen := engine.New(profiles, nil)
			gen.SetLogger(log)
			tbl, err := gen.Walk(ctx, cfg)
			if err != nil {
				return err
			}
			renderPaths(cmd.OutOrStdout(), tbl)
			return nil
		},
	}
	cmd.Flags().StringVarP(&resourcesFile, "resources", "r", "", "Resource configuration document")
	cmd.Flags().StringVar(&source, "source", "", "Profile URL to walk instead of the base resource")
	return cmd
}

func renderPaths(w io.Writer, tbl *walker.Table) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Path", "Type", "Kind", "Card.", "Binding"})
	for _, path := range tbl.Paths() {
		p := tbl.Property(path)
		if p == nil {
			continue
		}
		card := ""
		if p.Element != nil {
			card = fmt.Sprintf("%d..%s", p.Element.Min, p.Element.Max)
		}
		t.AppendRow(table.Row{path, p.Type, p.Kind.String(), card, p.Binding()})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
