package htan

import "github.com/gofhir/gen3dict/gen3"

// specialCases wire the HTAN backbone (project, patient, biospecimen,
// assay, file) into the Gen3 graph.
var specialCases = map[string]func(*gen3.Schema){
	"patient":     patientNode,
	"biospecimen": biospecimenNode,
	"assay":       assayNode,
	"file":        fileNode,
}

var dataFormats = []string{
	"VCF", "junc", "tbi", "txt", "tsv", "xlsx", "bam", "bai", "fastq", "bigWig", "crai",
	"cram", "bed", "bim", "fam", "pdf", "idat", "svs", "tab", "gds", "other",
}

var dataCategories = []string{
	"Analysis",
	"Sequencing Reads",
	"Single Nucleotide Variation",
	"Simple Nucleotide Variation",
	"Transcriptome Profiling",
	"Clinical",
	"Imaging",
	"Supplemental",
	"Other",
}

func patientNode(s *gen3.Schema) {
	s.AddLink(newLink("projects", "patients", "reference_to", "project", "many_to_one", true))
}

func biospecimenNode(s *gen3.Schema) {
	s.AddLink(newLink("patient", "biospecimens", "reference_to", "patient", "one_to_many", true))
	s.Properties().Set("patient", gen3.NewObject("$ref", toOne))
}

func assayNode(s *gen3.Schema) {
	s.AddLink(newLink("biospecimen", "files", "reference_to", "biospecimen", "many_to_many", true))
	s.Properties().Set("biospecimen", gen3.NewObject("$ref", toOne))
}

func fileNode(s *gen3.Schema) {
	s.AddLink(newLink("assay", "files", "reference_to", "assay", "many_to_one", true))
	s.AddLink(newLink("core_metadata_collections", "files", "data_from", "core_metadata_collection", "many_to_one", false))

	props := s.Properties()
	props.Set("assay", gen3.NewObject("$ref", toOne))
	props.Set("core_metadata_collections", gen3.NewObject("$ref", toMany))
	props.Set("$ref", "_definitions.yaml#/data_file_properties")
	props.Set("data_format", gen3.NewObject(
		"term", gen3.NewObject("$ref", "_terms.yaml#/data_format"),
		"enum", append([]string(nil), dataFormats...),
	))
	// HTAN's fileFormat becomes Gen3's required data_type.
	if format, ok := props.Get("fileFormat"); ok {
		props.Set("data_type", format)
		props.Delete("fileFormat")
	} else {
		props.Set("data_type", gen3.NewObject("type", "string"))
	}
	props.Set("data_category", gen3.NewObject(
		"term", gen3.NewObject("$ref", "_terms.yaml#/data_category"),
		"enum", append([]string(nil), dataCategories...),
	))
	s.AddRequired("data_type", "data_format", "data_category")
}
