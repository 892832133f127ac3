// Package loader converts FHIR StructureDefinitions into the internal
// service model and provides an in-memory profile resolver.
//
// The converter decodes documents with the typed r4 model, classifies every
// declared type into a service.TypeKind, and lifts fixed and pattern codings
// so the normalizer can emit single-value enumerations.
//
//	conv := loader.NewR4Converter()
//	sd, err := conv.Parse(raw)
//
//	profiles := loader.NewInMemoryProfileService()
//	n, err := profiles.Load(ctx, afs.New(), "profiles")
package loader
