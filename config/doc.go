// Package config loads the generator's settings and its resource
// configuration document.
//
// Settings come from defaults, an optional gen3dict.yaml and GEN3DICT_
// environment variables. The resource document maps each node name to its
// source profile and selected properties:
//
//	Patient:
//	  source: http://hl7.org/fhir/StructureDefinition/Patient
//	  category: administrative
//	  properties:
//	    include: [gender, birthDate, name.family]
//	    exclude: ["*extension*"]
//	  enums:
//	    gender: http://hl7.org/fhir/ValueSet/administrative-gender
//
// Resource documents are validated against an embedded JSON Schema before
// they are decoded; resources keep document order.
package config
