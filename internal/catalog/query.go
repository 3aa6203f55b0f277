package catalog

import (
	"github.com/franz/vaultify/internal/meta"
)

// Query is one catalog search. Widening queries trade precision for recall
// and are only issued while the matcher is still short of results.
type Query struct {
	Text     string
	Widening bool
}

// widenSuffixes are appended to the title to widen recall for film music
var widenSuffixes = []string{
	"tamil song",
	"movie song",
	"A.R.Rahman",
}

// BuildQueries derives search queries from a title and artist, most
// specific first. Empty and duplicate queries are dropped.
func BuildQueries(title, artist string) []Query {
	t := meta.SearchTerm(title)
	a := meta.SearchTerm(artist)

	var queries []Query
	seen := make(map[string]bool)
	add := func(text string, widening bool) {
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		queries = append(queries, Query{Text: text, Widening: widening})
	}

	if t == "" {
		add(a, false)
		return queries
	}

	if a != "" {
		add(t+" "+a, false)
	}
	add(t, false)

	for _, suffix := range widenSuffixes {
		add(t+" "+suffix, true)
	}

	return queries
}

// Exact wraps already-built query strings as non-widening queries
func Exact(texts ...string) []Query {
	queries := make([]Query, 0, len(texts))
	for _, text := range texts {
		if text != "" {
			queries = append(queries, Query{Text: text})
		}
	}
	return queries
}
