package score

import (
	"sort"

	"github.com/franz/vaultify/internal/meta"
)

const (
	// fieldsPerSource is the number of compared fields per evidence source
	fieldsPerSource = 3
	// evidenceSources is the number of evidence sources a candidate is compared to
	evidenceSources = 3
	// maxAgreement is the fixed denominator: every source agreeing on every field
	maxAgreement = fieldsPerSource * evidenceSources

	// FileTagPrior is the floor confidence of the file-tag fallback candidate
	FileTagPrior = 0.7
	// FilenamePrior is the floor confidence of the filename fallback candidate
	FilenamePrior = 0.5
)

// Evidence groups what is already known about a track. Nil means absent.
type Evidence struct {
	Existing *meta.Evidence
	Filename *meta.Evidence
	Tag      *meta.Evidence
}

// Confidence measures how far a candidate agrees with the evidence.
// Each (source, field) pair over title, artist and album whose evidence is
// non-empty and equal to the candidate's value ignoring case adds one point;
// the total is divided by the fixed maximum so adding agreeing evidence can
// never lower the score.
func Confidence(c meta.Candidate, ev Evidence) float64 {
	matches := agreement(c, ev.Existing) + agreement(c, ev.Filename) + agreement(c, ev.Tag)
	return float64(matches) / float64(maxAgreement)
}

// agreement counts fields on which a single evidence source matches the candidate
func agreement(c meta.Candidate, src *meta.Evidence) int {
	if src == nil {
		return 0
	}

	n := 0
	if meta.EqualFold(src.Title, c.Title) {
		n++
	}
	if meta.EqualFold(src.Artist, c.Artist) {
		n++
	}
	if meta.EqualFold(src.Album, c.Album) {
		n++
	}
	return n
}

// ScoreAll sets the confidence of every candidate from its agreement with ev
func ScoreAll(candidates []meta.Candidate, ev Evidence) []meta.Candidate {
	scored := make([]meta.Candidate, len(candidates))
	for i, c := range candidates {
		c.Confidence = Confidence(c, ev)
		scored[i] = c
	}
	return scored
}

// Fallbacks builds the filename and file-tag candidates that are always
// offered next to catalog results. A fallback is only produced when its
// evidence has a title or an artist. Its confidence never drops below the
// source prior.
func Fallbacks(ev Evidence) []meta.Candidate {
	var out []meta.Candidate

	if ev.Filename != nil && (ev.Filename.Title != "" || ev.Filename.Artist != "") {
		c := ev.Filename.Candidate(meta.SourceFilename, 0)
		c.Confidence = max(FilenamePrior, Confidence(c, ev))
		out = append(out, c)
	}

	if ev.Tag != nil && (ev.Tag.Title != "" || ev.Tag.Artist != "") {
		c := ev.Tag.Candidate(meta.SourceFileTag, 0)
		c.Confidence = max(FileTagPrior, Confidence(c, ev))
		out = append(out, c)
	}

	return out
}

// Rank orders candidates by confidence, highest first.
// Ties go to the more authoritative source (Catalog > File Metadata >
// Filename), then to the original order.
func Rank(candidates []meta.Candidate) []meta.Candidate {
	ranked := make([]meta.Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Source.Priority() > ranked[j].Source.Priority()
	})

	return ranked
}

// Best returns the top-ranked candidate
func Best(candidates []meta.Candidate) (meta.Candidate, bool) {
	if len(candidates) == 0 {
		return meta.Candidate{}, false
	}
	return Rank(candidates)[0], true
}
