package gen3

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfig is returned when a resource configuration does not match the
// walked profile.
var ErrConfig = errors.New("configuration error")

// ConfigError describes a configuration mismatch for one resource.
type ConfigError struct {
	Resource string
	// Missing lists configured include paths absent from the path table.
	Missing []string
	// Available lists every walked property path, for diagnosis.
	Available []string
	// Collision is set when two properties flatten to the same name.
	Collision []string
}

func (e *ConfigError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", ErrConfig, e.Resource)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&sb, ": requested paths %v not found; available paths: %v", e.Missing, e.Available)
	}
	if len(e.Collision) > 0 {
		fmt.Fprintf(&sb, ": properties %v flatten to the same name", e.Collision)
	}
	return sb.String()
}

// Is lets errors.Is(err, ErrConfig) match.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
