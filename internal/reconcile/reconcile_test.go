package reconcile

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/franz/vaultify/internal/catalog"
	"github.com/franz/vaultify/internal/meta"
	"github.com/franz/vaultify/internal/objstore"
	"github.com/franz/vaultify/internal/report"
	"github.com/franz/vaultify/internal/store"
	"github.com/franz/vaultify/internal/util"
)

// stubProvider returns the same answer for every query
type stubProvider struct {
	results []meta.Candidate
	err     error

	mu      sync.Mutex
	queries []string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Search(ctx context.Context, query string, limit int) ([]meta.Candidate, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubProvider) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// tagsFor serves tag evidence from a table keyed by file name
func tagsFor(table map[string]meta.Evidence) TagReader {
	return func(r io.ReadSeeker, name string) *meta.Evidence {
		ev := table[filepath.Base(name)]
		return &ev
	}
}

type fixture struct {
	bucket  *objstore.Local
	store   *store.Store
	scratch string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bucket, err := objstore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return &fixture{bucket: bucket, store: store.New(bucket), scratch: t.TempDir()}
}

func (f *fixture) reconciler(p catalog.Provider, tags map[string]meta.Evidence) *Reconciler {
	var matcher *catalog.Matcher
	if p != nil {
		matcher = catalog.NewMatcher(&catalog.MatcherConfig{Providers: []catalog.Provider{p}})
	}
	return New(&Config{
		Tags:          tagsFor(tags),
		Matcher:       matcher,
		Bucket:        f.bucket,
		Store:         f.store,
		CoverFallback: true,
		ScratchDir:    f.scratch,
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func writeZip(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for entry, content := range entries {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("zip Create failed: %v", err)
		}
		io.WriteString(w, content)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close failed: %v", err)
	}
	return path
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not cleaned up: %d entries left", len(entries))
	}
}

var kannalanae = meta.Evidence{Title: "Kannalanae", Artist: "A.R. Rahman"}

func TestReconcile_CatalogFillsGaps(t *testing.T) {
	f := newFixture(t)
	provider := &stubProvider{results: []meta.Candidate{{
		Title: "Kannalanae", Artist: "A.R. Rahman", Album: "Bombay", Genre: "tamil", CoverURL: "https://img/bombay.jpg",
	}}}
	r := f.reconciler(provider, map[string]meta.Evidence{"song.mp3": kannalanae})
	path := writeFile(t, t.TempDir(), "song.mp3", "audio")

	record, err := r.Reconcile(context.Background(), "song.mp3", path)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	expected := store.TrackMetadata{
		Title: "Kannalanae", Artist: "A.R. Rahman", Album: "Bombay", Genre: "tamil", CoverURL: "https://img/bombay.jpg",
	}
	if record != expected {
		t.Errorf("Reconcile = %+v, expected %+v", record, expected)
	}
	if provider.calls() != 1 {
		t.Errorf("provider calls = %d, expected 1", provider.calls())
	}
}

func TestReconcile_CompleteTagsBeatUnrelatedCatalogMatch(t *testing.T) {
	f := newFixture(t)
	provider := &stubProvider{results: []meta.Candidate{{Title: "Something Else", Artist: "Nobody", Album: "Other"}}}
	r := f.reconciler(provider, map[string]meta.Evidence{"song.mp3": kannalanae})
	path := writeFile(t, t.TempDir(), "song.mp3", "audio")

	record, err := r.Reconcile(context.Background(), "song.mp3", path)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if record.Title != "Kannalanae" || record.Artist != "A.R. Rahman" || record.Album != "" {
		t.Errorf("tags should win over a zero-confidence match, got %+v", record)
	}
	if !strings.HasPrefix(record.CoverURL, coverFallbackBase) {
		t.Errorf("CoverURL = %q, expected fallback", record.CoverURL)
	}
}

func TestReconcile_FilenameWhenTagsMissing(t *testing.T) {
	f := newFixture(t)
	provider := &stubProvider{err: fmt.Errorf("%w: down", util.ErrExternalService)}
	r := f.reconciler(provider, nil)
	name := "A.R. Rahman - Kannalanae (Bombay).mp3"
	path := writeFile(t, t.TempDir(), name, "audio")

	record, err := r.Reconcile(context.Background(), name, path)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if record.Title != "Kannalanae" || record.Artist != "A.R. Rahman" || record.Album != "Bombay" {
		t.Errorf("Reconcile = %+v", record)
	}
	if provider.calls() == 0 {
		t.Error("catalog should be queried once title and artist are known")
	}
}

func TestReconcile_UnknownArtistSkipsCatalog(t *testing.T) {
	f := newFixture(t)
	provider := &stubProvider{}
	r := f.reconciler(provider, nil)
	name := "Kannalanae tamil song.mp3"
	path := writeFile(t, t.TempDir(), name, "audio")

	record, err := r.Reconcile(context.Background(), name, path)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if record.Artist != meta.UnknownArtist {
		t.Errorf("Artist = %q, expected placeholder", record.Artist)
	}
	if provider.calls() != 0 {
		t.Errorf("provider calls = %d, expected none for an unknown artist", provider.calls())
	}
}

func TestReconcile_UnsearchableTags(t *testing.T) {
	f := newFixture(t)
	provider := &stubProvider{}
	r := f.reconciler(provider, map[string]meta.Evidence{
		"intro.mp3": {Title: "[Intro]", Artist: "?!"},
	})
	path := writeFile(t, t.TempDir(), "intro.mp3", "audio")

	record, err := r.Reconcile(context.Background(), "intro.mp3", path)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if provider.calls() != 0 {
		t.Errorf("provider calls = %d, expected none without a searchable term", provider.calls())
	}
	if record.Title == "" {
		t.Errorf("record = %+v, expected a title from tags or file name", record)
	}
}

func TestReconcile_NoCoverFallback(t *testing.T) {
	f := newFixture(t)
	r := New(&Config{Tags: tagsFor(map[string]meta.Evidence{"a.mp3": kannalanae}), Bucket: f.bucket, Store: f.store})
	path := writeFile(t, t.TempDir(), "a.mp3", "audio")

	record, err := r.Reconcile(context.Background(), "a.mp3", path)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if record.CoverURL != "" {
		t.Errorf("CoverURL = %q, expected none", record.CoverURL)
	}
}

func TestIngestFile(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(nil, map[string]meta.Evidence{"a.mp3": kannalanae})
	path := writeFile(t, t.TempDir(), "a.mp3", "audio bytes")
	ctx := context.Background()

	res, err := r.IngestFile(ctx, "a.mp3", path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if res.FileName != "a.mp3" || res.SignedURL == "" || res.Title != "Kannalanae" {
		t.Errorf("IngestFile = %+v", res)
	}

	obj, err := f.bucket.Get(ctx, "a.mp3")
	if err != nil || string(obj.Body) != "audio bytes" {
		t.Fatalf("uploaded object = %v, %v", obj, err)
	}
	song, ok, _ := f.store.Song(ctx, "a.mp3")
	if !ok || song.Artist != "A.R. Rahman" {
		t.Errorf("stored song = %+v, %v", song, ok)
	}
}

func TestIngestFile_MergesWithExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.MergeSong(ctx, "a.mp3", store.TrackMetadata{Genre: "Soundtrack", CoverURL: "https://c/1.jpg"})

	r := f.reconciler(nil, map[string]meta.Evidence{"a.mp3": kannalanae})
	path := writeFile(t, t.TempDir(), "a.mp3", "audio")
	if _, err := r.IngestFile(ctx, "a.mp3", path); err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	song, _, _ := f.store.Song(ctx, "a.mp3")
	if song.Genre != "Soundtrack" || song.Title != "Kannalanae" {
		t.Errorf("stored song = %+v, expected merge with existing fields", song)
	}
	if song.CoverURL != "https://c/1.jpg" {
		t.Errorf("CoverURL = %q, stored cover should not be replaced by a guess", song.CoverURL)
	}
}

func TestIngestArchive(t *testing.T) {
	f := newFixture(t)
	logger, err := report.NewEventLogger(t.TempDir(), report.LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	var mu sync.Mutex
	var seen []string
	r := New(&Config{
		Tags:       tagsFor(nil),
		Bucket:     f.bucket,
		Store:      f.store,
		Events:     logger,
		Workers:    2,
		ScratchDir: f.scratch,
		OnResult: func(res Result) {
			mu.Lock()
			seen = append(seen, res.FileName)
			mu.Unlock()
		},
	})

	zipPath := writeZip(t, t.TempDir(), "pack.zip", map[string]string{
		"disc1/b.mp3":    "b",
		"disc1/a.flac":   "a",
		"c.ogg":          "c",
		"cover.jpg":      "jpg",
		"notes/info.txt": "txt",
	})

	upload, err := r.Ingest(context.Background(), "pack.zip", zipPath)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	logger.Close()

	if !upload.Archive || len(upload.Files) != 3 {
		t.Fatalf("Ingest = archive %v with %d files, expected 3", upload.Archive, len(upload.Files))
	}
	expectedOrder := []string{"c.ogg", "a.flac", "b.mp3"}
	for i, name := range expectedOrder {
		if upload.Files[i].FileName != name {
			t.Errorf("Files[%d] = %s, expected %s", i, upload.Files[i].FileName, name)
		}
		if upload.Files[i].Error != "" {
			t.Errorf("Files[%d] failed: %s", i, upload.Files[i].Error)
		}
	}
	if len(seen) != 3 {
		t.Errorf("OnResult called %d times, expected 3", len(seen))
	}

	doc, _, _ := f.store.Load(context.Background())
	if len(doc.Songs) != 3 {
		t.Errorf("stored songs = %d, expected 3", len(doc.Songs))
	}
	assertEmptyDir(t, f.scratch)

	summary, err := report.Summarize(logger.Path())
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.FilesUploaded != 3 || summary.MergesWritten != 3 || summary.Archives != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

// failingBucket rejects uploads of one key
type failingBucket struct {
	objstore.Bucket
	failKey string
}

func (b *failingBucket) Put(ctx context.Context, key string, body io.Reader, size int64, opts objstore.PutOptions) error {
	if key == b.failKey {
		return fmt.Errorf("%w: injected failure", util.ErrExternalService)
	}
	return b.Bucket.Put(ctx, key, body, size, opts)
}

func TestIngestArchive_OneFileFails(t *testing.T) {
	f := newFixture(t)
	r := New(&Config{
		Tags:       tagsFor(nil),
		Bucket:     &failingBucket{Bucket: f.bucket, failKey: "b.mp3"},
		Store:      f.store,
		ScratchDir: f.scratch,
	})
	zipPath := writeZip(t, t.TempDir(), "pack.zip", map[string]string{
		"a.mp3": "a",
		"b.mp3": "b",
		"c.mp3": "c",
	})

	results, err := r.IngestArchive(context.Background(), "pack.zip", zipPath)
	if err != nil {
		t.Fatalf("IngestArchive failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, expected 3", len(results))
	}
	if results[1].FileName != "b.mp3" || !strings.Contains(results[1].Error, "injected failure") {
		t.Errorf("results[1] = %+v, expected the injected failure", results[1])
	}
	if results[0].Error != "" || results[2].Error != "" {
		t.Errorf("unrelated files failed: %+v", results)
	}
	assertEmptyDir(t, f.scratch)
}

func TestIngestArchive_Corrupt(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(nil, nil)
	path := writeFile(t, t.TempDir(), "broken.zip", "not a zip at all")

	_, err := r.IngestArchive(context.Background(), "broken.zip", path)
	if !errors.Is(err, util.ErrDecode) {
		t.Errorf("IngestArchive(corrupt) = %v, expected ErrDecode", err)
	}
	assertEmptyDir(t, f.scratch)
}

func TestIngest_Unsupported(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(nil, nil)
	path := writeFile(t, t.TempDir(), "notes.txt", "text")

	_, err := r.Ingest(context.Background(), "notes.txt", path)
	if !errors.Is(err, util.ErrValidation) {
		t.Errorf("Ingest(.txt) = %v, expected ErrValidation", err)
	}
}

func TestFetchMatches_AllProvidersFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	name := "A.R. Rahman - Kannalanae (Bombay).mp3"
	f.bucket.Put(ctx, name, strings.NewReader("audio"), 5, objstore.PutOptions{})

	provider := &stubProvider{err: errors.New("network unreachable")}
	r := f.reconciler(provider, map[string]meta.Evidence{name: kannalanae})

	matches, err := r.FetchMatches(ctx, name, nil)
	if err != nil {
		t.Fatalf("FetchMatches failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %+v, expected the two fallbacks", matches)
	}
	if matches[0].Source != meta.SourceFileTag || matches[0].Confidence != 0.7 {
		t.Errorf("matches[0] = %+v, expected file tag fallback at 0.7", matches[0])
	}
	if matches[1].Source != meta.SourceFilename || matches[1].Album != "Bombay" {
		t.Errorf("matches[1] = %+v, expected filename fallback", matches[1])
	}
	// filename agrees with itself on 3 fields and with the tags on 2
	if matches[1].Confidence < 5.0/9-0.001 || matches[1].Confidence > 5.0/9+0.001 {
		t.Errorf("filename confidence = %f, expected 5/9", matches[1].Confidence)
	}
	if provider.calls() == 0 {
		t.Error("providers were not consulted")
	}
}

func TestFetchMatches_CatalogRanksFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	name := "A.R. Rahman - Kannalanae (Bombay).mp3"
	f.bucket.Put(ctx, name, strings.NewReader("audio"), 5, objstore.PutOptions{})

	provider := &stubProvider{results: []meta.Candidate{
		{Title: "Kannalanae", Artist: "A.R. Rahman", Album: "Bombay"},
		{Title: "Kannalane", Artist: "Rahman", Album: "Bombay OST"},
	}}
	r := f.reconciler(provider, map[string]meta.Evidence{name: kannalanae})
	existing := &store.TrackMetadata{Title: "Kannalanae", Artist: "A.R. Rahman", Album: "Bombay"}

	matches, err := r.FetchMatches(ctx, name, existing)
	if err != nil {
		t.Fatalf("FetchMatches failed: %v", err)
	}
	if len(matches) != 4 {
		t.Fatalf("matches = %d, expected 2 catalog + 2 fallbacks", len(matches))
	}
	top := matches[0]
	if top.Source != meta.SourceCatalog || top.Provider != "stub" {
		t.Errorf("top = %+v, expected the catalog match", top)
	}
	if top.Confidence < 8.0/9-0.001 {
		t.Errorf("top confidence = %f, expected 8/9", top.Confidence)
	}
	last := matches[len(matches)-1]
	if last.Title != "Kannalane" || last.Confidence != 0 {
		t.Errorf("last = %+v, expected the near miss with zero confidence", last)
	}
}

func TestFetchMatches_MissingObject(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(nil, map[string]meta.Evidence{"Song.mp3": kannalanae})

	matches, err := r.FetchMatches(context.Background(), "Song.mp3", nil)
	if err != nil {
		t.Fatalf("FetchMatches failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Source != meta.SourceFilename || matches[0].Title != "Song" {
		t.Errorf("matches = %+v, expected only the filename fallback", matches)
	}
}

func TestFetchMatches_RequiresFileName(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(nil, nil)
	if _, err := r.FetchMatches(context.Background(), "", nil); !errors.Is(err, util.ErrValidation) {
		t.Errorf("FetchMatches(\"\") = %v, expected ErrValidation", err)
	}
}

func TestCoverFallbackURL(t *testing.T) {
	got := CoverFallbackURL(store.TrackMetadata{Title: "Kannalanae", Artist: "A.R. Rahman"})
	expected := "https://source.unsplash.com/300x300/?A.R.%20Rahman%2CKannalanae%2Ctamil%20movie%2Calbum%20cover%2Cmusic"
	if got != expected {
		t.Errorf("CoverFallbackURL = %s, expected %s", got, expected)
	}
}

func TestSetFields(t *testing.T) {
	got := setFields(store.TrackMetadata{Title: "a", Genre: "b"})
	if len(got) != 2 || got[0] != "title" || got[1] != "genre" {
		t.Errorf("setFields = %v", got)
	}
}
