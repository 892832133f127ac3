// Package gen3dict generates Gen3 data-dictionary node schemas from FHIR
// StructureDefinitions.
//
// Each configured resource is expanded from its profile into a table of
// property paths, the selected paths are normalised into Gen3 property
// descriptors (types, enumerations drawn from bound value sets, required
// fields) and the result is written as one YAML document per node plus an
// aggregate JSON index.
//
// # Quick Start
//
//	import (
//	    gd "github.com/gofhir/gen3dict"
//	    "github.com/gofhir/gen3dict/config"
//	    "github.com/gofhir/gen3dict/engine"
//	    "github.com/gofhir/gen3dict/registry"
//	    "github.com/gofhir/gen3dict/terminology"
//	)
//
//	resources, err := config.LoadResources(ctx, afs.New(), "config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := terminology.NewMemoryStore()
//	gen := engine.New(registry.NewClient(), terminology.NewResolver(store),
//	    gd.WithOutputDir("schemas"),
//	)
//
//	result, err := gen.Run(ctx, resources)
//	if result.HasErrors() {
//	    for _, issue := range result.Errors() {
//	        fmt.Println(issue)
//	    }
//	}
//
// # Packages
//
//   - service: domain model and the small resolver interfaces
//   - registry: profile store with an on-disk cache and primitive memo
//   - terminology: value-set store, bulk loader and concept resolver
//   - walker: profile to property-path table, with recursion guard
//   - gen3: scaffold, property normaliser and node assembler
//   - engine: per-resource run, output writing and the aggregate index
//   - htan: node schemas from the HTAN JSON-LD model
//
// Resources are processed one at a time in configuration order. A failure
// in one resource is recorded in the Result and the run continues.
package gen3dict
