// Package slug derives candidate entry identifiers from display names.
package slug

import (
	"regexp"
	"strings"
)

// DefaultPrefixes is the ordered list of entry-type namespaces tried when
// turning a slug into a candidate identifier.
var DefaultPrefixes = []string{
	"condition",
	"anatomy",
	"medication",
	"procedure",
	"symptom",
	"test",
	"wellness",
}

var (
	quoteRe       = regexp.MustCompile("[\"'`‘’“”]")
	nonAlnumRunRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Derive converts a display name into a slug.
//
// Rules:
//  1. Lowercase
//  2. Strip quote characters
//  3. Collapse every run of non [a-z0-9] characters to a single dash
//  4. Trim leading/trailing dashes
//
// Examples:
//
//	"Type 2 Diabetes"       → "type-2-diabetes"
//	"Crohn's Disease"       → "crohns-disease"
//	"  COVID-19 (acute) "   → "covid-19-acute"
//
// Only ASCII letters and digits survive, so accented names lose those
// characters: "Bronquitis Crónica" becomes "bronquitis-cr-nica". Resolving
// localized names is left to the cross-language strategy.
func Derive(name string) string {
	s := strings.ToLower(name)
	s = quoteRe.ReplaceAllString(s, "")
	s = nonAlnumRunRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Candidates returns the identifiers to try for name: one per prefix in
// order, followed by the bare slug. An empty slug yields no candidates.
func Candidates(name string, prefixes []string) []string {
	s := Derive(name)
	if s == "" {
		return nil
	}
	out := make([]string, 0, len(prefixes)+1)
	for _, p := range prefixes {
		out = append(out, p+"-"+s)
	}
	return append(out, s)
}
