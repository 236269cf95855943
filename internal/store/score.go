package store

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/tokenizer"
)

// Field weights on the 0-100 relevance scale. Whole-string matches outrank
// partial ones; name matches outrank keyword matches.
const (
	scoreNameExact      = 100
	scoreAliasExact     = 90
	scoreNamePrefix     = 80
	scorePrimaryKeyword = 75
	scoreNameContains   = 70
	scoreSynonym        = 70
	scoreAliasContains  = 65
	scoreSecondary      = 60
	scoreTag            = 50

	weightNameTerms    = 60
	weightKeywordTerms = 45
	weightSummaryTerms = 30
)

type query struct {
	folded string
	terms  []string
}

func newQuery(raw string) query {
	return query{
		folded: tokenizer.Fold(raw),
		terms:  tokenizer.Terms(raw),
	}
}

func (q query) empty() bool {
	return q.folded == ""
}

// searchDoc is the pre-folded, pre-tokenised form of an entry, built once
// per write.
type searchDoc struct {
	name          string
	nameLocalized string
	aliases       []string
	primary       []string
	secondary     []string
	synonyms      []string
	tags          []string
	nameTerms     map[string]struct{}
	keywordTerms  map[string]struct{}
	summaryTerms  map[string]struct{}
}

func buildSearchDoc(e content.Entry) searchDoc {
	doc := searchDoc{
		name:          tokenizer.Fold(e.Name),
		nameLocalized: tokenizer.Fold(e.NameLocalized),
		aliases:       foldAll(e.Aliases),
		primary:       foldAll(e.SearchMetadata.PrimaryKeywords),
		secondary:     foldAll(e.SearchMetadata.SecondaryKeywords),
		synonyms:      foldAll(e.SearchMetadata.Synonyms),
		tags:          foldAll(e.SearchMetadata.Tags),
		nameTerms:     make(map[string]struct{}),
		keywordTerms:  make(map[string]struct{}),
		summaryTerms:  make(map[string]struct{}),
	}
	addTerms(doc.nameTerms, e.Name, e.NameLocalized)
	addTerms(doc.nameTerms, e.Aliases...)
	addTerms(doc.keywordTerms, e.SearchMetadata.PrimaryKeywords...)
	addTerms(doc.keywordTerms, e.SearchMetadata.SecondaryKeywords...)
	addTerms(doc.keywordTerms, e.SearchMetadata.Synonyms...)
	addTerms(doc.keywordTerms, e.SearchMetadata.Tags...)
	addTerms(doc.summaryTerms, e.Summary)
	return doc
}

// score returns the best single-field score for q. Zero means no match.
func (d searchDoc) score(q query) int {
	best := 0
	consider := func(s int) {
		if s > best {
			best = s
		}
	}

	switch {
	case d.name == q.folded:
		consider(scoreNameExact)
	case strings.HasPrefix(d.name, q.folded):
		consider(scoreNamePrefix)
	case strings.Contains(d.name, q.folded):
		consider(scoreNameContains)
	}
	if d.nameLocalized != "" {
		switch {
		case d.nameLocalized == q.folded:
			consider(scoreAliasExact)
		case strings.Contains(d.nameLocalized, q.folded):
			consider(scoreAliasContains)
		}
	}
	for _, a := range d.aliases {
		switch {
		case a == q.folded:
			consider(scoreAliasExact)
		case strings.Contains(a, q.folded):
			consider(scoreAliasContains)
		}
	}
	if contains(d.primary, q.folded) {
		consider(scorePrimaryKeyword)
	}
	if contains(d.synonyms, q.folded) {
		consider(scoreSynonym)
	}
	if contains(d.secondary, q.folded) {
		consider(scoreSecondary)
	}
	if contains(d.tags, q.folded) {
		consider(scoreTag)
	}

	if len(q.terms) > 0 {
		consider(coverage(d.nameTerms, q.terms, weightNameTerms))
		consider(coverage(d.keywordTerms, q.terms, weightKeywordTerms))
		consider(coverage(d.summaryTerms, q.terms, weightSummaryTerms))
	}
	return best
}

// coverage scales weight by the fraction of query terms present in set.
func coverage(set map[string]struct{}, terms []string, weight int) int {
	if len(set) == 0 {
		return 0
	}
	found := 0
	for _, t := range terms {
		if _, ok := set[t]; ok {
			found++
		}
	}
	return weight * found / len(terms)
}

func addTerms(set map[string]struct{}, texts ...string) {
	for _, text := range texts {
		for _, tok := range tokenizer.Tokenize(text) {
			set[tok.Term] = struct{}{}
		}
	}
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := tokenizer.Fold(s); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
