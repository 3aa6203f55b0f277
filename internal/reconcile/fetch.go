package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/franz/vaultify/internal/catalog"
	"github.com/franz/vaultify/internal/meta"
	"github.com/franz/vaultify/internal/score"
	"github.com/franz/vaultify/internal/store"
	"github.com/franz/vaultify/internal/util"
)

// FetchMatches proposes ranked metadata for a stored object without
// persisting anything. Queries are built from the filename (tags when the
// filename yields no title) and every catalog candidate is scored against
// the filename, the tags and existing. The filename and tag fallbacks are
// always offered, so the result is non-empty whenever either source knows
// a title or an artist, even with every provider down. An absent object
// leaves only filename evidence.
func (r *Reconciler) FetchMatches(ctx context.Context, fileName string, existing *store.TrackMetadata) ([]meta.Candidate, error) {
	if fileName == "" {
		return nil, fmt.Errorf("%w: fileName is required", util.ErrValidation)
	}

	tags := &meta.Evidence{}
	obj, err := r.bucket.Get(ctx, fileName)
	switch {
	case errors.Is(err, util.ErrNotFound):
		util.DebugLog("Object %s not found, matching on its name only", fileName)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	default:
		t := r.tags(bytes.NewReader(obj.Body), fileName).Normalized()
		tags = &t
	}

	parsed := meta.ParseFilename(fileName)
	ev := score.Evidence{Filename: &parsed, Tag: tags}
	if existing != nil && !existing.IsZero() {
		ev.Existing = existing.Evidence()
	} else {
		ev.Existing = r.existing(ctx, fileName)
	}

	title, artist := parsed.Title, parsed.Artist
	if title == "" {
		title, artist = tags.Title, tags.Artist
	}
	if !isKnown(artist) {
		artist = ""
	}

	var matches []meta.Candidate
	if r.matcher != nil {
		queries := catalog.BuildQueries(title, artist)
		matches = score.ScoreAll(r.matcher.Match(ctx, queries), ev)
		if len(queries) > 0 {
			r.events.LogMatch(fileName, queries[0].Text, "", len(matches), topConfidence(matches))
		}
	}
	matches = append(matches, score.Fallbacks(ev)...)

	return score.Rank(matches), nil
}

func topConfidence(candidates []meta.Candidate) float64 {
	best, ok := score.Best(candidates)
	if !ok {
		return 0
	}
	return best.Confidence
}
