package walker

import "strings"

// MatchMode selects how a configured path pattern is compared to a walked
// path. Existing configuration files rely on all three.
type MatchMode int

const (
	// MatchExact matches the path itself and everything below it.
	MatchExact MatchMode = iota
	// MatchPrefix matches paths starting with the pattern ("contact." or
	// "contact*").
	MatchPrefix
	// MatchSubstring matches paths containing the pattern ("*period*").
	MatchSubstring
)

// String returns the mode name.
func (m MatchMode) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchSubstring:
		return "substring"
	default:
		return "unknown"
	}
}

// PathPattern is one parsed pattern.
type PathPattern struct {
	Raw   string
	Mode  MatchMode
	Value string
}

// Match reports whether path matches the pattern.
func (p PathPattern) Match(path string) bool {
	switch p.Mode {
	case MatchSubstring:
		return strings.Contains(path, p.Value)
	case MatchPrefix:
		return strings.HasPrefix(path, p.Value)
	default:
		return path == p.Value || strings.HasPrefix(path, p.Value+".")
	}
}

// patternParsers recognise a pattern's mode; they are tried in order and
// exact is the fallback.
var patternParsers = []func(string) (PathPattern, bool){
	func(s string) (PathPattern, bool) {
		if len(s) > 2 && strings.HasPrefix(s, "*") && strings.HasSuffix(s, "*") {
			return PathPattern{Raw: s, Mode: MatchSubstring, Value: s[1 : len(s)-1]}, true
		}
		return PathPattern{}, false
	},
	func(s string) (PathPattern, bool) {
		if v, ok := strings.CutSuffix(s, "*"); ok && v != "" {
			return PathPattern{Raw: s, Mode: MatchPrefix, Value: v}, true
		}
		if strings.HasSuffix(s, ".") && len(s) > 1 {
			return PathPattern{Raw: s, Mode: MatchPrefix, Value: s}, true
		}
		return PathPattern{}, false
	},
}

// ParsePattern parses one configured path pattern.
func ParsePattern(s string) PathPattern {
	for _, parse := range patternParsers {
		if p, ok := parse(s); ok {
			return p
		}
	}
	return PathPattern{Raw: s, Mode: MatchExact, Value: s}
}

// PathFilter matches paths against a list of patterns.
type PathFilter struct {
	patterns []PathPattern
}

// NewPathFilter parses patterns; blank entries are ignored.
func NewPathFilter(patterns []string) *PathFilter {
	f := &PathFilter{}
	for _, s := range patterns {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		f.patterns = append(f.patterns, ParsePattern(s))
	}
	return f
}

// Empty reports whether the filter has no patterns.
func (f *PathFilter) Empty() bool {
	return f == nil || len(f.patterns) == 0
}

// Match reports whether any pattern matches path.
func (f *PathFilter) Match(path string) bool {
	if f == nil {
		return false
	}
	for _, p := range f.patterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}
