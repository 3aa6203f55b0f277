package store

import (
	"strings"

	"github.com/franz/vaultify/internal/meta"
)

// TrackMetadata is the stored description of one audio object
type TrackMetadata struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Genre    string `json:"genre,omitempty"`
	CoverURL string `json:"coverUrl,omitempty"`
}

// IsZero reports whether no field is set
func (t TrackMetadata) IsZero() bool {
	return t == TrackMetadata{}
}

// Merge applies update field by field: non-empty fields overwrite,
// empty fields keep the current value
func (t TrackMetadata) Merge(update TrackMetadata) TrackMetadata {
	t.Title = pick(update.Title, t.Title)
	t.Artist = pick(update.Artist, t.Artist)
	t.Album = pick(update.Album, t.Album)
	t.Genre = pick(update.Genre, t.Genre)
	t.CoverURL = pick(update.CoverURL, t.CoverURL)
	return t
}

// Evidence converts stored metadata into scorer evidence
func (t TrackMetadata) Evidence() *meta.Evidence {
	return &meta.Evidence{
		Title:    t.Title,
		Artist:   t.Artist,
		Album:    t.Album,
		Genre:    t.Genre,
		CoverURL: t.CoverURL,
	}
}

// FromCandidate keeps the persisted fields of a ranked candidate
func FromCandidate(c meta.Candidate) TrackMetadata {
	return TrackMetadata{
		Title:    c.Title,
		Artist:   c.Artist,
		Album:    c.Album,
		Genre:    c.Genre,
		CoverURL: c.CoverURL,
	}
}

// PlaylistMetadata describes a playlist; its lifecycle is independent of songs
type PlaylistMetadata struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	CoverURL string `json:"coverUrl,omitempty"`
}

// Merge applies update with the same field-level rule as TrackMetadata
func (p PlaylistMetadata) Merge(update PlaylistMetadata) PlaylistMetadata {
	p.ID = pick(update.ID, p.ID)
	p.Name = pick(update.Name, p.Name)
	p.CoverURL = pick(update.CoverURL, p.CoverURL)
	return p
}

// Document is the single persisted metadata document
type Document struct {
	Songs     map[string]TrackMetadata    `json:"songs"`
	Playlists map[string]PlaylistMetadata `json:"playlists"`
}

// NewDocument returns an empty document with both maps allocated
func NewDocument() *Document {
	return &Document{
		Songs:     make(map[string]TrackMetadata),
		Playlists: make(map[string]PlaylistMetadata),
	}
}

// ensureMaps replaces null maps so the document always encodes as objects
func (d *Document) ensureMaps() {
	if d.Songs == nil {
		d.Songs = make(map[string]TrackMetadata)
	}
	if d.Playlists == nil {
		d.Playlists = make(map[string]PlaylistMetadata)
	}
}

func pick(update, current string) string {
	if strings.TrimSpace(update) != "" {
		return update
	}
	return current
}
