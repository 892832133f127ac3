package gen3

// simpleTypes maps FHIR type codes directly to Gen3 types.
var simpleTypes = map[string]string{
	"http://hl7.org/fhirpath/System.Integer": "integer",
	"integer":                                "integer",
	"positiveInt":                            "integer",
	"unsignedInt":                            "integer",
	"int":                                    "integer",
	"http://hl7.org/fhirpath/System.Decimal": "float",
	"decimal":                                "float",
	"float":                                  "float",
	"http://hl7.org/fhirpath/System.Boolean": "boolean",
	"boolean":                                "boolean",
	"bool":                                   "boolean",
	"http://hl7.org/fhirpath/System.String":  "string",
	"string":                                 "string",
	"str":                                    "string",
	"markdown":                               "string",
	"id":                                     "string",
	"oid":                                    "string",
	"uuid":                                   "string",
	"base64Binary":                           "string",
	"xhtml":                                  "string",
}

// specialTypes rewrite a descriptor in place for types that need more than
// a type name.
var specialTypes = map[string]func(d *Object){
	"uri":                                     formatURI,
	"url":                                     formatURI,
	"canonical":                               formatURI,
	"code":                                    formatCode,
	"http://hl7.org/fhirpath/System.DateTime": temporal("date-time", true),
	"dateTime":                                temporal("date-time", true),
	"instant":                                 temporal("date-time", true),
	"FHIRDate":                                temporal("date-time", true),
	"http://hl7.org/fhirpath/System.Date":     temporal("date", false),
	"date":                                    temporal("date", false),
	"http://hl7.org/fhirpath/System.Time":     temporal("time", false),
	"time":                                    temporal("time", false),
}

func formatURI(d *Object) {
	d.Set("format", "uri")
}

func formatCode(d *Object) {
	d.Set("format", "code")
}

// temporal replaces the plain type with a nullable formatted string.
func temporal(format string, term bool) func(d *Object) {
	return func(d *Object) {
		d.Set("oneOf", []*Object{
			NewObject("type", "string", "format", format),
			NewObject("type", "null"),
		})
		if term {
			d.Set("term", NewObject("$ref", "_terms.yaml#/datetime"))
		}
		d.Delete("type")
	}
}

// MapType applies the type mapping to descriptor d for FHIR type code and
// reports whether the code was known. Unknown codes leave d untouched.
func MapType(code string, d *Object) bool {
	if mapped, ok := simpleTypes[code]; ok {
		d.Set("type", mapped)
		return true
	}
	if rewrite, ok := specialTypes[code]; ok {
		rewrite(d)
		return true
	}
	return false
}
