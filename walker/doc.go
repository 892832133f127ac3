// Package walker expands a FHIR profile into a flat table of property paths.
//
// Starting from a profile's root element, every direct child element
// declares one property (a choice element "value[x]" declares one per type).
// Each property is matched back to its definition and then followed
// according to the kind of its type:
//   - primitives and Identifier are leaves
//   - BackboneElement and Element structures are described inside the
//     owning profile; the walk continues over the slice of its elements
//   - every other type has its own profile, fetched through a
//     service.ProfileResolver; when none exists the type is treated as an
//     embedded structure
//
// Content references are followed by slicing the referenced subtree out of
// the root profile. A level whose type is already being expanded further up
// the chain is not expanded again, so self-referential structures terminate.
//
// # Usage
//
//	w := walker.New(profileStore)
//	table, err := w.Walk(ctx, "Patient", "")
//	for _, path := range table.Paths() {
//	    p := table.Property(path) // p.Type, p.Element, p.Required ...
//	}
//
// Keys are dot-joined ("contact.name.family"). Every level also carries a
// "_root" entry ("_root", "contact._root") describing the level itself.
//
// A Walker is not safe for concurrent walks.
package walker
