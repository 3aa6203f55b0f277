package meta

import (
	"regexp"
	"strings"
)

// annotationTokens are bracketed or parenthesised markers that describe the
// upload rather than the song. Matched case-insensitively as whole tokens.
var annotationTokens = []string{
	`official\s+(?:music\s+)?video`,
	`official\s+(?:lyric(?:al)?\s+)?video`,
	`official\s+audio`,
	`official\s+visuali[sz]er`,
	`lyric(?:al)?\s+video`,
	`lyrics?`,
	`audio`,
	`video\s+song`,
	`full\s+(?:video\s+)?song`,
	`hd`,
	`hq`,
	`1080p`,
	`720p`,
	`4k`,
	`tamil\s+(?:hd|hq|song|movie|audio|video)`,
	`tamizh\s+(?:hd|hq|song|movie|audio|video)`,
}

// sourceSites are download sites that stamp their name onto files
var sourceSites = []string{
	"masstamilan",
	"isaimini",
	"starmusiq",
	"tamilwire",
	"kuttyweb",
	"tamiltunes",
	"pagalworld",
}

var (
	siteAlternation = strings.Join(sourceSites, "|")

	annotationPattern = regexp.MustCompile(
		`(?i)\s*[\(\[]\s*(?:` + strings.Join(annotationTokens, "|") + `|(?:www\.)?(?:` + siteAlternation + `)(?:\.[a-z]{2,4})?)\s*[\)\]]`)

	sitePattern = regexp.MustCompile(
		`(?i)\s*[-_|~]?\s*\b(?:www\.)?(?:` + siteAlternation + `)(?:\.[a-z]{2,4})?\b`)

	emptyBracketPattern = regexp.MustCompile(`\(\s*\)|\[\s*\]`)

	// any bracketed or parenthesised segment, for search-term construction
	bracketedPattern = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
)

// regionalKeywords flag Tamil film music when no structural pattern matched
var regionalKeywords = []string{
	"tamil",
	"tamizh",
	"tamil song",
	"tamizh song",
	"tamil movie",
	"tamizh movie",
}

// hasRegionalKeyword reports whether the lowercased name mentions a regional keyword
func hasRegionalKeyword(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range regionalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
