package main

import (
	"fmt"

	"github.com/gofhir/gen3dict/terminology"
	"github.com/spf13/cobra"
)

func valueSetsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "valuesets",
		Short: "Manage the value-set store",
	}

	var bundle, databaseURL string
	var curated bool
	load := &cobra.Command{
		Use:   "load",
		Short: "Load value sets and code systems into the store",
		Long: `Load reads a FHIR Bundle of ValueSet and CodeSystem resources, such as
the published valuesets.json, and optionally fetches the curated
supplement. Entries are written to the PostgreSQL store named by
--database-url or the settings; without one the load is only checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, log, err := g.load()
			if err != nil {
				return err
			}
			if databaseURL != "" {
				settings.ValueSets.DatabaseURL = databaseURL
			}
			if bundle == "" {
				bundle = settings.ValueSets.Path
			}

			store, closeStore, err := valueSetStore(ctx, settings)
			defer closeStore()
			if err != nil {
				return err
			}
			if settings.ValueSets.DatabaseURL == "" {
				log.Warn("no database configured, loading into memory only")
			}

			ld := terminology.NewLoader(store, terminology.WithLoaderLogger(log))
			stats, err := ld.LoadFile(ctx, localURL(bundle))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d value sets, %d code systems, %d skipped, %d errors\n",
				bundle, stats.ValueSetsLoaded, stats.CodeSystemsLoaded, stats.Skipped, stats.Errors)

			if curated || settings.ValueSets.Curated {
				cs, err := ld.LoadCurated(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "curated: %d value sets, %d code systems, %d errors\n",
					cs.ValueSetsLoaded, cs.CodeSystemsLoaded, cs.Errors)
			}

			n, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "store holds %d entries\n", n)
			return nil
		},
	}
	load.Flags().StringVar(&bundle, "bundle", "", "Bundle to load (default from settings)")
	load.Flags().BoolVar(&curated, "curated", false, "Also fetch the curated value sets")
	load.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	cmd.AddCommand(load)
	return cmd
}
