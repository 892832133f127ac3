package htan

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"
)

var (
	acronymBoundary = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	wordBoundary    = regexp.MustCompile(`([a-z\d])([A-Z])`)
)

// Underscore converts a CamelCase or hyphenated label to snake_case.
func Underscore(s string) string {
	s = acronymBoundary.ReplaceAllString(s, "${1}_${2}")
	s = wordBoundary.ReplaceAllString(s, "${1}_${2}")
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ToLower(s)
}

// label returns the node's display label, falling back to its local id.
func label(n *Node) string {
	if n.Label != "" {
		return LocalName(n.Label)
	}
	return LocalName(n.ID)
}

// NodeName returns the Gen3 node id for a model node: the snake_case
// singular of its label.
func NodeName(n *Node) string {
	name := Underscore(inflection.Singular(label(n)))
	// The singular rule for "-men" mangles this one.
	if name == "biospeciman" {
		name = "biospecimen"
	}
	return name
}

// Plural returns the plural form used for link and backref names.
func Plural(s string) string {
	return inflection.Plural(s)
}
