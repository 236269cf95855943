package catalog

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/alias"
)

// EntryChecker reports whether an entry ID exists.
type EntryChecker interface {
	Has(id string) bool
}

// Dangling is one reference to an entry that does not exist.
type Dangling struct {
	Kind   string `json:"kind"`
	From   string `json:"from"`
	Target string `json:"target"`
}

func (d Dangling) String() string {
	return fmt.Sprintf("%s %q -> %q: entry not found", d.Kind, d.From, d.Target)
}

// Report lists every dangling reference found by Integrity.
type Report struct {
	Aliases  int        `json:"aliases_checked"`
	Curated  int        `json:"curated_checked"`
	Dangling []Dangling `json:"dangling"`
}

// OK reports whether no dangling reference was found.
func (r Report) OK() bool { return len(r.Dangling) == 0 }

// Integrity checks that every alias term and every curated pair points at
// an entry in entries. The resolver tolerates dangling references at
// runtime; this is the offline check that surfaces them.
func Integrity(entries EntryChecker, aliases *alias.Table, curated map[string]string) Report {
	report := Report{Dangling: make([]Dangling, 0)}
	for _, p := range aliases.Pairs() {
		report.Aliases++
		if !entries.Has(p.EntryID) {
			report.Dangling = append(report.Dangling, Dangling{Kind: "alias", From: p.Term, Target: p.EntryID})
		}
	}

	keys := make([]string, 0, len(curated))
	for k := range curated {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		report.Curated++
		if !entries.Has(curated[k]) {
			report.Dangling = append(report.Dangling, Dangling{Kind: "curated", From: k, Target: curated[k]})
		}
	}
	return report
}
