// Package reconcile runs the metadata pipeline for uploaded audio: evidence
// extraction, catalog matching, scoring, upload and merge.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/franz/vaultify/internal/archive"
	"github.com/franz/vaultify/internal/catalog"
	"github.com/franz/vaultify/internal/meta"
	"github.com/franz/vaultify/internal/objstore"
	"github.com/franz/vaultify/internal/report"
	"github.com/franz/vaultify/internal/score"
	"github.com/franz/vaultify/internal/store"
	"github.com/franz/vaultify/internal/util"
)

const (
	// DefaultWorkers bounds concurrent files within one archive
	DefaultWorkers = 4
	// DefaultURLTTL is the lifetime of signed object URLs
	DefaultURLTTL = time.Hour
)

// TagReader extracts embedded tag evidence; name is only used for logging
type TagReader func(r io.ReadSeeker, name string) *meta.Evidence

// Reconciler derives, persists and serves track metadata
type Reconciler struct {
	tags          TagReader
	matcher       *catalog.Matcher
	bucket        objstore.Bucket
	store         *store.Store
	events        *report.EventLogger
	expander      *archive.Expander
	workers       int
	coverFallback bool
	urlTTL        time.Duration
	onResult      func(Result)
}

// Config holds reconciler configuration. A nil Tags reads embedded tags
// with dhowden/tag; a nil Matcher disables catalog lookups.
type Config struct {
	Tags          TagReader
	Matcher       *catalog.Matcher
	Bucket        objstore.Bucket
	Store         *store.Store
	Events        *report.EventLogger
	Workers       int
	CoverFallback bool
	ScratchDir    string
	MaxArchive    int64         // expanded size limit (0 = archive default)
	URLTTL        time.Duration // signed URL lifetime (0 = 1h)
	OnResult      func(Result)  // called after each ingested file
}

// New creates a Reconciler
func New(cfg *Config) *Reconciler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Tags == nil {
		cfg.Tags = meta.ReadTagsFrom
	}
	if cfg.MaxArchive <= 0 {
		cfg.MaxArchive = archive.DefaultMaxExpandedSize
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = DefaultURLTTL
	}

	return &Reconciler{
		tags:          cfg.Tags,
		matcher:       cfg.Matcher,
		bucket:        cfg.Bucket,
		store:         cfg.Store,
		events:        cfg.Events,
		expander:      &archive.Expander{ScratchRoot: cfg.ScratchDir, MaxSize: cfg.MaxArchive},
		workers:       cfg.Workers,
		coverFallback: cfg.CoverFallback,
		urlTTL:        cfg.URLTTL,
		onResult:      cfg.OnResult,
	}
}

// Reconcile derives the metadata record for one local audio file.
// Tags come first; the filename is only parsed when tags lack a title or
// an artist. With both known, the catalog is asked and its best candidate
// fills the record unless it agrees with nothing while the tags were
// complete. Missing or failing providers are not an error.
func (r *Reconciler) Reconcile(ctx context.Context, fileName, localPath string) (store.TrackMetadata, error) {
	if err := ctx.Err(); err != nil {
		return store.TrackMetadata{}, err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return store.TrackMetadata{}, fmt.Errorf("open %s: %w", fileName, err)
	}
	tags := r.tags(f, fileName).Normalized()
	f.Close()
	r.events.LogExtract(fileName, string(meta.SourceFileTag), tags.Title, tags.Artist)

	ev := score.Evidence{Tag: &tags}
	known := tags
	if !tags.Complete() {
		parsed := meta.ParseFilename(fileName)
		ev.Filename = &parsed
		known = fill(known, parsed)
		r.events.LogExtract(fileName, string(meta.SourceFilename), parsed.Title, parsed.Artist)
	}
	ev.Existing = r.existing(ctx, fileName)

	record := store.TrackMetadata{
		Title:  known.Title,
		Artist: known.Artist,
		Album:  known.Album,
		Genre:  known.Genre,
	}

	var queries []catalog.Query
	if r.matcher != nil && known.Title != "" && isKnown(known.Artist) {
		queries = catalog.BuildQueries(known.Title, known.Artist)
	}
	// nothing searchable survives when title or artist is all punctuation
	if len(queries) > 0 {
		queries = queries[:1]
		candidates := score.ScoreAll(r.matcher.Match(ctx, queries), ev)

		best, ok := score.Best(candidates)
		switch {
		case !ok:
			r.events.LogMatch(fileName, queries[0].Text, "", 0, 0)
		case best.Confidence == 0 && tags.Complete():
			util.DebugLog("Catalog top match for %s agrees with nothing, keeping tags", fileName)
			r.events.LogMatch(fileName, queries[0].Text, string(meta.SourceFileTag), len(candidates), 0)
		default:
			record = record.Merge(store.FromCandidate(best))
			r.events.LogMatch(fileName, queries[0].Text, best.Provider, len(candidates), best.Confidence)
		}
	}

	// a stored cover survives the merge, so only guess when there is none
	if record.CoverURL == "" && r.coverFallback && (ev.Existing == nil || ev.Existing.CoverURL == "") {
		record.CoverURL = CoverFallbackURL(record)
	}

	return record, nil
}

// existing returns the stored record for fileName as evidence, if any
func (r *Reconciler) existing(ctx context.Context, fileName string) *meta.Evidence {
	if r.store == nil {
		return nil
	}
	song, ok, err := r.store.Song(ctx, fileName)
	if err != nil {
		util.DebugLog("Stored metadata for %s unavailable: %v", fileName, err)
		return nil
	}
	if !ok {
		return nil
	}
	return song.Evidence()
}

// fill copies title, artist and album from src where dst has none
func fill(dst, src meta.Evidence) meta.Evidence {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Artist == "" {
		dst.Artist = src.Artist
	}
	if dst.Album == "" {
		dst.Album = src.Album
	}
	return dst
}

// isKnown rejects the placeholder the filename parser uses for missing artists
func isKnown(artist string) bool {
	return artist != "" && artist != meta.UnknownArtist
}
