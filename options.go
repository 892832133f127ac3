package gen3dict

import (
	"strings"
	"time"
)

// Option configures a generation run.
type Option func(*Options)

// Options holds all configuration for a generation run.
type Options struct {
	// Output
	OutputDir     string
	IndexName     string
	WriteIndex    bool
	SkipUnchanged bool

	// Behaviour
	FailFast        bool
	ResourceTimeout time.Duration
	MaxConcepts     int

	// Profiles
	FHIRVersion FHIRVersion
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:     "schemas",
		IndexName:     "dump.json",
		WriteIndex:    true,
		SkipUnchanged: true,

		FailFast:        false,
		ResourceTimeout: 0, // no timeout
		MaxConcepts:     1000,

		FHIRVersion: R4,
	}
}

// Apply returns the defaults with opts applied in order.
func Apply(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// --- Output Options ---

// WithOutputDir sets the directory schemas are written to. Any afs URL
// (file, mem, s3, ...) is accepted.
func WithOutputDir(dir string) Option {
	return func(o *Options) {
		if dir != "" {
			o.OutputDir = strings.TrimSuffix(dir, "/")
		}
	}
}

// WithIndex enables or disables the aggregate index and sets its name.
// An empty name keeps the current one.
func WithIndex(enable bool, name string) Option {
	return func(o *Options) {
		o.WriteIndex = enable
		if name != "" {
			o.IndexName = name
		}
	}
}

// WithSkipUnchanged leaves schema files whose content is unchanged untouched.
func WithSkipUnchanged(enable bool) Option {
	return func(o *Options) {
		o.SkipUnchanged = enable
	}
}

// --- Behaviour Options ---

// WithFailFast stops the run at the first resource that fails.
func WithFailFast(enable bool) Option {
	return func(o *Options) {
		o.FailFast = enable
	}
}

// WithResourceTimeout bounds the time spent on each resource.
// Use 0 for no timeout.
func WithResourceTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.ResourceTimeout = timeout
	}
}

// WithMaxConcepts sets the enumeration size above which a binding degrades.
func WithMaxConcepts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxConcepts = n
		}
	}
}

// WithFHIRVersion selects the core profile location.
func WithFHIRVersion(v FHIRVersion) Option {
	return func(o *Options) {
		if v.IsValid() {
			o.FHIRVersion = v
		}
	}
}

// --- Presets ---

// StrictOptions stops at the first failure and always rewrites outputs.
func StrictOptions() []Option {
	return []Option{
		WithFailFast(true),
		WithSkipUnchanged(false),
	}
}
