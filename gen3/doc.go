// Package gen3 renders walked FHIR properties as Gen3 data-dictionary nodes.
//
// An Assembler starts every node from the same scaffold (system properties,
// uniqueness keys, base required fields and base properties), keeps only the
// configured include paths of the walked table and hands them to a
// Normalizer. The Normalizer maps FHIR types to Gen3 types, resolves
// vocabulary bindings to enums and flattens dotted paths:
//
//	subject.reference   -> subject_reference
//	valueQuantity.value -> valueQuantity
//
// A binding that cannot be enumerated does not fail the node; the property
// becomes a plain string carrying a comment_enum diagnostic and the miss is
// recorded in Schema.Degraded.
//
// Schemas keep key order when marshalled to YAML or JSON.
package gen3
