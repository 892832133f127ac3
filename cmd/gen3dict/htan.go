package main

import (
	"fmt"

	gd "github.com/gofhir/gen3dict"
	"github.com/gofhir/gen3dict/engine"
	"github.com/gofhir/gen3dict/htan"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
)

func htanCmd(g *globals) *cobra.Command {
	var schemaFile, id, output string
	var force bool
	cmd := &cobra.Command{
		Use:   "htan",
		Short: "Generate Gen3 schemas from an HTAN JSON-LD model",
		Long: `Htan describes one class of an HTAN JSON-LD data model and writes a
schema for it and for each of its dependent neighbours, linked back to it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, log, err := g.load()
			if err != nil {
				return err
			}
			fs := afs.New()
			model, err := htan.Load(ctx, fs, localURL(schemaFile))
			if err != nil {
				return err
			}
			schemas, err := htan.NewGenerator(model, htan.WithLogger(log)).Generate(ctx, id)
			if err != nil {
				return err
			}

			if output == "" {
				output = settings.OutputDir
			}
			w := engine.NewWriter(fs, localURL(output), !force, log)
			if err := w.EnsureDir(ctx, true); err != nil {
				return err
			}
			result := gd.NewResult()
			for _, s := range schemas {
				o := gd.Outcome{Resource: s.Name}
				if err := w.WriteYAML(ctx, s.Name, s, &o); err != nil {
					o.Failed = true
					result.AddError(gd.IssueTypeProcessing, s.Name, err.Error())
				}
				result.AddOutcome(o)
			}
			renderResult(cmd.OutOrStdout(), result)
			if failed := result.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d schema(s) failed: %v", len(failed), failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema", "HTAN.model.jsonld", "HTAN JSON-LD model")
	cmd.Flags().StringVar(&id, "id", "bts:Patient", "Identifier of the class to describe")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default from settings)")
	cmd.Flags().BoolVar(&force, "force", false, "Rewrite schemas whose content is unchanged")
	return cmd
}
