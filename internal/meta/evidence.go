package meta

import "strings"

// Evidence is one source's opinion about a track's metadata.
// Fields are plain strings; empty means the source had nothing to say.
type Evidence struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Genre    string `json:"genre"`
	CoverURL string `json:"coverUrl"`
}

// Empty reports whether the evidence carries no title, artist or album
func (e Evidence) Empty() bool {
	return e.Title == "" && e.Artist == "" && e.Album == ""
}

// Complete reports whether both title and artist are known
func (e Evidence) Complete() bool {
	return e.Title != "" && e.Artist != ""
}

// Normalized returns a copy with every text field passed through Clean
func (e Evidence) Normalized() Evidence {
	return Evidence{
		Title:    Clean(e.Title),
		Artist:   Clean(e.Artist),
		Album:    Clean(e.Album),
		Genre:    Clean(e.Genre),
		CoverURL: strings.TrimSpace(e.CoverURL),
	}
}

// Candidate converts the evidence into a ranked candidate
func (e Evidence) Candidate(source Source, confidence float64) Candidate {
	return Candidate{
		Title:      e.Title,
		Artist:     e.Artist,
		Album:      e.Album,
		Genre:      e.Genre,
		CoverURL:   e.CoverURL,
		Source:     source,
		Confidence: confidence,
	}
}

// Source identifies where a candidate came from
type Source string

const (
	SourceCatalog  Source = "Catalog"
	SourceFileTag  Source = "File Metadata"
	SourceFilename Source = "Filename"
)

// Priority orders sources for tie-breaking: higher wins
func (s Source) Priority() int {
	switch s {
	case SourceCatalog:
		return 3
	case SourceFileTag:
		return 2
	case SourceFilename:
		return 1
	default:
		return 0
	}
}

// Candidate is a possible metadata record for a track, produced during
// reconciliation and never persisted directly
type Candidate struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	Genre      string  `json:"genre"`
	CoverURL   string  `json:"coverUrl"`
	Source     Source  `json:"source"`
	Provider   string  `json:"provider,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Evidence strips the ranking fields
func (c Candidate) Evidence() Evidence {
	return Evidence{
		Title:    c.Title,
		Artist:   c.Artist,
		Album:    c.Album,
		Genre:    c.Genre,
		CoverURL: c.CoverURL,
	}
}

// Key is the exact (title, artist, album) triple used for deduplication
func (c Candidate) Key() string {
	return c.Title + "\x00" + c.Artist + "\x00" + c.Album
}
