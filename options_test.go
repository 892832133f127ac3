package gen3dict

import (
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.OutputDir != "schemas" {
		t.Errorf("OutputDir = %q; want schemas", opts.OutputDir)
	}
	if opts.IndexName != "dump.json" {
		t.Errorf("IndexName = %q; want dump.json", opts.IndexName)
	}
	if !opts.WriteIndex {
		t.Error("WriteIndex should be true by default")
	}
	if !opts.SkipUnchanged {
		t.Error("SkipUnchanged should be true by default")
	}
	if opts.FailFast {
		t.Error("FailFast should be false by default")
	}
	if opts.ResourceTimeout != 0 {
		t.Errorf("ResourceTimeout = %v; want 0", opts.ResourceTimeout)
	}
	if opts.MaxConcepts != 1000 {
		t.Errorf("MaxConcepts = %d; want 1000", opts.MaxConcepts)
	}
	if opts.FHIRVersion != R4 {
		t.Errorf("FHIRVersion = %s; want R4", opts.FHIRVersion)
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		check func(*Options) bool
	}{
		{"output dir", WithOutputDir("mem://localhost/out/"), func(o *Options) bool { return o.OutputDir == "mem://localhost/out" }},
		{"empty output dir", WithOutputDir(""), func(o *Options) bool { return o.OutputDir == "schemas" }},
		{"index off", WithIndex(false, ""), func(o *Options) bool { return !o.WriteIndex && o.IndexName == "dump.json" }},
		{"index name", WithIndex(true, "index.json"), func(o *Options) bool { return o.WriteIndex && o.IndexName == "index.json" }},
		{"skip unchanged", WithSkipUnchanged(false), func(o *Options) bool { return !o.SkipUnchanged }},
		{"fail fast", WithFailFast(true), func(o *Options) bool { return o.FailFast }},
		{"timeout", WithResourceTimeout(5 * time.Second), func(o *Options) bool { return o.ResourceTimeout == 5*time.Second }},
		{"max concepts", WithMaxConcepts(50), func(o *Options) bool { return o.MaxConcepts == 50 }},
		{"max concepts ignored", WithMaxConcepts(0), func(o *Options) bool { return o.MaxConcepts == 1000 }},
		{"fhir version", WithFHIRVersion(R5), func(o *Options) bool { return o.FHIRVersion == R5 }},
		{"fhir version ignored", WithFHIRVersion("R3"), func(o *Options) bool { return o.FHIRVersion == R4 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.opt(opts)
			if !tt.check(opts) {
				t.Errorf("unexpected options: %+v", opts)
			}
		})
	}
}

func TestApply(t *testing.T) {
	opts := Apply(append(StrictOptions(), WithOutputDir("out"))...)

	if !opts.FailFast {
		t.Error("StrictOptions should enable FailFast")
	}
	if opts.SkipUnchanged {
		t.Error("StrictOptions should disable SkipUnchanged")
	}
	if opts.OutputDir != "out" {
		t.Errorf("OutputDir = %q; want out", opts.OutputDir)
	}
}
