// Package terminology resolves value-set bindings to enumerations of codes.
//
// The package provides:
//   - Store: a lookup of ValueSet and CodeSystem documents keyed by full URL
//     and canonical url, held in memory (MemoryStore) or PostgreSQL (PGStore)
//   - Loader: fills a Store from a bulk Bundle and a small curated supplement
//   - Resolver: follows a value set to its code system, applies filters and
//     caps large enumerations
//
// Example usage:
//
//	store := terminology.NewMemoryStore()
//	if _, err := terminology.NewLoader(store).LoadFile(ctx, "valuesets.json"); err != nil {
//		return err
//	}
//	concepts, err := terminology.NewResolver(store).ResolveValueSet(ctx, "http://hl7.org/fhir/ValueSet/administrative-gender|4.0.1")
package terminology
