package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/franz/vaultify/internal/meta"
)

// stubProvider answers from a fixed table and records queries
type stubProvider struct {
	name    string
	results map[string][]meta.Candidate
	err     error
	delay   time.Duration

	mu      sync.Mutex
	queries []string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(ctx context.Context, query string, limit int) ([]meta.Candidate, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

func (s *stubProvider) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func track(title, artist, album string) meta.Candidate {
	return meta.Candidate{Title: title, Artist: artist, Album: album}
}

func TestMatcher_RegionalFirst(t *testing.T) {
	regional := &stubProvider{name: "regional", results: map[string][]meta.Candidate{
		"kannalanae": {track("Kannalanae", "A.R. Rahman", "Bombay")},
	}}
	general := &stubProvider{name: "general", results: map[string][]meta.Candidate{
		"kannalanae": {track("Kannalane", "Rahman", "Bombay OST")},
	}}

	m := NewMatcher(&MatcherConfig{Providers: []Provider{regional, general}})
	got := m.Match(context.Background(), Exact("kannalanae"))

	if len(got) != 1 || got[0].Title != "Kannalanae" {
		t.Fatalf("Match = %+v, expected regional result only", got)
	}
	if got[0].Source != meta.SourceCatalog || got[0].Provider != "regional" {
		t.Errorf("Source/Provider = %q/%q, expected Catalog/regional", got[0].Source, got[0].Provider)
	}
	if len(general.calls()) != 0 {
		t.Errorf("general provider called %d times, expected 0", len(general.calls()))
	}
}

func TestMatcher_FallsBackOnFailureAndEmpty(t *testing.T) {
	tests := []struct {
		name     string
		regional *stubProvider
	}{
		{"error", &stubProvider{name: "regional", err: errors.New("auth failed")}},
		{"empty", &stubProvider{name: "regional"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			general := &stubProvider{name: "general", results: map[string][]meta.Candidate{
				"q": {track("T", "A", "B")},
			}}
			m := NewMatcher(&MatcherConfig{Providers: []Provider{tt.regional, general}})

			got := m.Match(context.Background(), Exact("q"))
			if len(got) != 1 || got[0].Provider != "general" {
				t.Errorf("Match = %+v, expected general fallback", got)
			}
		})
	}
}

func TestMatcher_AllProvidersFail(t *testing.T) {
	m := NewMatcher(&MatcherConfig{Providers: []Provider{
		&stubProvider{name: "a", err: errors.New("network down")},
		&stubProvider{name: "b", err: errors.New("network down")},
	}})

	if got := m.Match(context.Background(), Exact("q1", "q2")); len(got) != 0 {
		t.Errorf("Match = %+v, expected no candidates", got)
	}
}

func TestMatcher_Dedupes(t *testing.T) {
	p := &stubProvider{name: "p", results: map[string][]meta.Candidate{
		"q1": {track("T", "A", "B"), track("T", "A", "C")},
		"q2": {track("T", "A", "B"), track("t", "A", "B")},
	}}
	m := NewMatcher(&MatcherConfig{Providers: []Provider{p}})

	got := m.Match(context.Background(), Exact("q1", "q2"))
	// exact triple: "t" differs from "T"
	if len(got) != 3 {
		t.Errorf("len(Match) = %d, expected 3: %+v", len(got), got)
	}
}

func TestMatcher_WideningOnlyWhenShort(t *testing.T) {
	many := []meta.Candidate{
		track("1", "a", ""), track("2", "a", ""), track("3", "a", ""),
	}
	p := &stubProvider{name: "p", results: map[string][]meta.Candidate{"exact": many}}
	m := NewMatcher(&MatcherConfig{Providers: []Provider{p}, Limit: 3})

	queries := []Query{{Text: "exact"}, {Text: "wide", Widening: true}}
	m.Match(context.Background(), queries)

	calls := p.calls()
	if len(calls) != 1 || calls[0] != "exact" {
		t.Errorf("queries = %v, expected only the exact query", calls)
	}

	p2 := &stubProvider{name: "p"}
	m2 := NewMatcher(&MatcherConfig{Providers: []Provider{p2}, Limit: 3})
	m2.Match(context.Background(), queries)
	if len(p2.calls()) != 2 {
		t.Errorf("queries = %v, expected widening query to run", p2.calls())
	}
}

func TestMatcher_Timeout(t *testing.T) {
	slow := &stubProvider{name: "slow", delay: time.Second, results: map[string][]meta.Candidate{
		"q": {track("late", "", "")},
	}}
	fast := &stubProvider{name: "fast", results: map[string][]meta.Candidate{
		"q": {track("fast", "", "")},
	}}
	m := NewMatcher(&MatcherConfig{Providers: []Provider{slow, fast}, Timeout: 20 * time.Millisecond})

	got := m.Match(context.Background(), Exact("q"))
	if len(got) != 1 || got[0].Title != "fast" {
		t.Errorf("Match = %+v, expected fast provider result", got)
	}
}

func TestMatcher_CapsProviders(t *testing.T) {
	m := NewMatcher(&MatcherConfig{Providers: []Provider{
		&stubProvider{name: "a"}, &stubProvider{name: "b"}, &stubProvider{name: "c"},
	}})
	if len(m.Providers()) != MaxProviders {
		t.Errorf("len(Providers) = %d, expected %d", len(m.Providers()), MaxProviders)
	}
}

func TestBuildQueries(t *testing.T) {
	tests := []struct {
		title    string
		artist   string
		expected []Query
	}{
		{
			title:  "Kannalanae [Official Video]",
			artist: "A.R. Rahman",
			expected: []Query{
				{Text: "kannalanae a r rahman"},
				{Text: "kannalanae"},
				{Text: "kannalanae tamil song", Widening: true},
				{Text: "kannalanae movie song", Widening: true},
				{Text: "kannalanae A.R.Rahman", Widening: true},
			},
		},
		{
			title:  "Hosanna",
			artist: "",
			expected: []Query{
				{Text: "hosanna"},
				{Text: "hosanna tamil song", Widening: true},
				{Text: "hosanna movie song", Widening: true},
				{Text: "hosanna A.R.Rahman", Widening: true},
			},
		},
		{
			title:    "",
			artist:   "Ilaiyaraaja",
			expected: []Query{{Text: "ilaiyaraaja"}},
		},
		{
			title:    "",
			artist:   "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		got := BuildQueries(tt.title, tt.artist)
		if len(got) != len(tt.expected) {
			t.Errorf("BuildQueries(%q, %q) = %+v, expected %+v", tt.title, tt.artist, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("BuildQueries(%q, %q)[%d] = %+v, expected %+v", tt.title, tt.artist, i, got[i], tt.expected[i])
			}
		}
	}
}

func TestValidateNames(t *testing.T) {
	if err := ValidateNames(DefaultProviders); err != nil {
		t.Errorf("ValidateNames(default) = %v", err)
	}
	if err := ValidateNames([]string{"jiosaavn", "spotify", "musicbrainz"}); err == nil {
		t.Error("expected error for three providers")
	}
	if err := ValidateNames([]string{"deezer"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if err := ValidateNames([]string{"spotify", "spotify"}); err == nil {
		t.Error("expected error for duplicate provider")
	}
}

func TestBuildProviders_SkipsSpotifyWithoutCredentials(t *testing.T) {
	providers, err := BuildProviders(DefaultProviders, Settings{}, nil)
	if err != nil {
		t.Fatalf("BuildProviders failed: %v", err)
	}
	if len(providers) != 1 || providers[0].Name() != ProviderJioSaavn {
		t.Errorf("providers = %d, expected only jiosaavn", len(providers))
	}
}
