package gen3dict

// Version is the tool version, overridden at build time with
// -ldflags "-X github.com/gofhir/gen3dict.Version=...".
var Version = "dev"

// FHIRVersion represents a FHIR specification version.
type FHIRVersion string

// Supported FHIR versions.
const (
	// R4 is FHIR Release 4 (4.0.1)
	R4 FHIRVersion = "R4"
	// R4B is FHIR Release 4B (4.3.0)
	R4B FHIRVersion = "R4B"
	// R5 is FHIR Release 5 (5.0.0)
	R5 FHIRVersion = "R5"
)

// String returns the version string.
func (v FHIRVersion) String() string {
	return string(v)
}

// IsValid returns true if this is a supported FHIR version.
func (v FHIRVersion) IsValid() bool {
	switch v {
	case R4, R4B, R5:
		return true
	default:
		return false
	}
}

// versionConfig holds version-specific locations.
type versionConfig struct {
	// ProfileBaseURL is where core profiles named without a URL are fetched.
	ProfileBaseURL string

	// FHIRVersionString is the version string used in StructureDefinitions
	FHIRVersionString string
}

var versionConfigs = map[FHIRVersion]versionConfig{
	R4: {
		ProfileBaseURL:    "https://www.hl7.org/fhir",
		FHIRVersionString: "4.0.1",
	},
	R4B: {
		ProfileBaseURL:    "https://hl7.org/fhir/R4B",
		FHIRVersionString: "4.3.0",
	},
	R5: {
		ProfileBaseURL:    "https://hl7.org/fhir/R5",
		FHIRVersionString: "5.0.0",
	},
}

func getVersionConfig(v FHIRVersion) (versionConfig, bool) {
	cfg, ok := versionConfigs[v]
	return cfg, ok
}

// ProfileBaseURL returns the core profile location of a FHIR version.
func (v FHIRVersion) ProfileBaseURL() string {
	cfg, ok := getVersionConfig(v)
	if !ok {
		return versionConfigs[R4].ProfileBaseURL
	}
	return cfg.ProfileBaseURL
}
