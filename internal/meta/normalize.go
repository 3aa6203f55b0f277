package meta

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxCleanPasses bounds the fixed-point loop in Clean
const maxCleanPasses = 8

var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s]+`)

// Clean strips promotional, quality and source-site annotations from a
// candidate string, decodes HTML entities and tidies whitespace.
// It is total and idempotent: Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	for i := 0; i < maxCleanPasses; i++ {
		next := cleanOnce(s)
		if next == s {
			return next
		}
		s = next
	}
	return s
}

func cleanOnce(s string) string {
	if s == "" {
		return ""
	}

	s = html.UnescapeString(s)
	s = norm.NFC.String(s)

	s = annotationPattern.ReplaceAllString(s, "")
	s = sitePattern.ReplaceAllString(s, "")
	s = emptyBracketPattern.ReplaceAllString(s, "")

	s = collapseWhitespace(s)

	// Stripping a trailing token can leave "Title -" behind
	return strings.Trim(s, " -_|~")
}

// SearchTerm prepares a string for use in a catalog search query:
// cleaned, bracketed segments dropped, lowercased, punctuation removed.
func SearchTerm(s string) string {
	s = Clean(s)
	s = bracketedPattern.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = nonWordPattern.ReplaceAllString(s, " ")
	return collapseWhitespace(s)
}

// Fold prepares a string for case-insensitive equality checks
func Fold(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToLower(collapseWhitespace(norm.NFC.String(s)))
}

// EqualFold reports whether two non-empty strings match case-insensitively
func EqualFold(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return Fold(a) == Fold(b)
}

// collapseWhitespace replaces runs of Unicode whitespace with a single space
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
