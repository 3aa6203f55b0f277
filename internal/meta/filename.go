package meta

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// filenameRule is one structural pattern tried against the whole base name
type filenameRule struct {
	name   string
	re     *regexp.Regexp
	assign func(m []string) Evidence
}

var (
	dashParenPattern  = regexp.MustCompile(`^(.*?)\s*-\s*(.*?)\s*\((.*?)\)$`)
	parenDashPattern  = regexp.MustCompile(`^(.*?)\s*\((.*?)\)\s*-\s*(.*?)$`)
	threeDashPattern  = regexp.MustCompile(`^(.*?)\s*-\s*(.*?)\s*-\s*(.*?)$`)
	firstParenPattern = regexp.MustCompile(`\(([^)]*)\)`)
)

// filenameRules is evaluated in order; the first whole-name match wins.
// The last three rules share shapes with earlier ones and never fire
// through ParseFilename, but they stay in the table so existing filename
// conventions keep a documented mapping.
var filenameRules = []filenameRule{
	{
		// "Artist - Title (Album)"
		name: "artist-title-album",
		re:   dashParenPattern,
		assign: func(m []string) Evidence {
			return Evidence{Artist: m[1], Title: m[2], Album: m[3]}
		},
	},
	{
		// "Title (Album) - Artist"
		name: "title-album-artist",
		re:   parenDashPattern,
		assign: func(m []string) Evidence {
			return Evidence{Title: m[1], Album: m[2], Artist: m[3]}
		},
	},
	{
		// "A - B - C": a long leading segment is usually the film/album name
		name: "three-segments",
		re:   threeDashPattern,
		assign: func(m []string) Evidence {
			first, second := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
			if utf8.RuneCountInString(first) > utf8.RuneCountInString(second) {
				return Evidence{Album: m[1], Title: m[2], Artist: m[3]}
			}
			return Evidence{Title: m[1], Artist: m[2], Album: m[3]}
		},
	},
	{
		// "Title - Artist (Album)"
		name: "title-artist-album",
		re:   dashParenPattern,
		assign: func(m []string) Evidence {
			return Evidence{Title: m[1], Artist: m[2], Album: m[3]}
		},
	},
	{
		// "Album - Artist - Title"
		name: "album-artist-title",
		re:   threeDashPattern,
		assign: func(m []string) Evidence {
			return Evidence{Album: m[1], Artist: m[2], Title: m[3]}
		},
	},
	{
		// "Artist - Album - Title"
		name: "artist-album-title",
		re:   threeDashPattern,
		assign: func(m []string) Evidence {
			return Evidence{Artist: m[1], Album: m[2], Title: m[3]}
		},
	},
}

// ParseFilename derives best-effort metadata from an uploaded file's name.
// The final extension is stripped when present. Any non-empty name yields
// a title.
func ParseFilename(name string) Evidence {
	if strings.TrimSpace(name) == "" {
		return Evidence{}
	}

	base := stripExtension(filepath.Base(strings.TrimSpace(name)))
	raw := strings.TrimSpace(base)

	ev := parseName(raw).Normalized()
	if ev.Title == "" {
		ev.Title = raw
	}
	return ev
}

func parseName(name string) Evidence {
	for _, rule := range filenameRules {
		if m := rule.re.FindStringSubmatch(name); m != nil {
			return rule.assign(m)
		}
	}

	if hasRegionalKeyword(name) {
		ev := Evidence{Artist: UnknownArtist, Album: UnknownAlbum, Title: name}
		if loc := firstParenPattern.FindStringSubmatchIndex(name); loc != nil {
			ev.Album = name[loc[2]:loc[3]]
			ev.Title = name[:loc[0]] + name[loc[1]:]
		}
		return ev
	}

	if artist, title, ok := strings.Cut(name, " - "); ok {
		return Evidence{Artist: artist, Title: title}
	}

	return Evidence{Title: name}
}

// stripExtension removes a trailing extension such as ".mp3" but leaves
// names with no dot, or a leading dot only, untouched.
func stripExtension(base string) string {
	ext := filepath.Ext(base)
	if ext == "" || ext == base || strings.ContainsAny(ext, " ()[]") {
		return base
	}
	return strings.TrimSuffix(base, ext)
}
