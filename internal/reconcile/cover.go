package reconcile

import (
	"net/url"
	"strings"

	"github.com/franz/vaultify/internal/store"
)

const coverFallbackBase = "https://source.unsplash.com/300x300/?"

var coverHints = []string{"tamil movie", "album cover", "music"}

// CoverFallbackURL builds an image search URL from what is known about a
// track, for records no catalog could supply artwork for
func CoverFallbackURL(t store.TrackMetadata) string {
	var terms []string
	for _, term := range []string{t.Artist, t.Title, t.Album} {
		if term != "" {
			terms = append(terms, term)
		}
	}
	terms = append(terms, coverHints...)

	return coverFallbackBase + strings.ReplaceAll(url.QueryEscape(strings.Join(terms, ",")), "+", "%20")
}
