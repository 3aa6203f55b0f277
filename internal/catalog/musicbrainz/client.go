// Package musicbrainz searches MusicBrainz recordings. It needs no
// credentials and serves as the general catalog when Spotify is not
// configured.
package musicbrainz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/vaultify/internal/meta"
	"github.com/franz/vaultify/internal/util"
)

const (
	// BaseURL is the MusicBrainz API base URL
	BaseURL = "https://musicbrainz.org/ws/2"

	// UserAgent identifies this application to MusicBrainz
	// MusicBrainz requires a proper user agent
	UserAgent = "Vaultify/1.0 (https://github.com/franz/vaultify)"

	// RateLimit is the minimum spacing between requests (MusicBrainz requirement)
	RateLimit = 1 * time.Second

	coverArtURL = "https://coverartarchive.org/release/%s/front-250"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client handles MusicBrainz API requests with rate limiting
type Client struct {
	httpClient  *http.Client
	apiURL      string
	userAgent   string
	interval    time.Duration
	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a new MusicBrainz API client. An empty baseURL selects BaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiURL:    strings.TrimRight(baseURL, "/"),
		userAgent: UserAgent,
		interval:  RateLimit,
	}
}

func (c *Client) Name() string { return "musicbrainz" }

// RecordingSearchResult represents a recording search response
type RecordingSearchResult struct {
	Recordings []Recording `json:"recordings"`
	Count      int         `json:"count"`
	Offset     int         `json:"offset"`
}

// Recording is one MusicBrainz recording
type Recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Score        int            `json:"score"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	Releases     []Release      `json:"releases"`
	Tags         []Tag          `json:"tags"`
}

// ArtistCredit names one credited artist
type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

// Release is a release the recording appears on
type Release struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Date   string `json:"date"`
}

// Tag is a folksonomy tag, used as a genre hint
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Search searches recordings with a free-text query
func (c *Client) Search(ctx context.Context, query string, limit int) ([]meta.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	if err := c.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	urlStr := fmt.Sprintf("%s/recording?query=%s&fmt=json&limit=%d", c.apiURL, url.QueryEscape(query), limit)

	util.DebugLog("MusicBrainz API: searching recordings for '%s'", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: musicbrainz request failed: %v", util.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: MusicBrainz service unavailable (503) - rate limit exceeded or maintenance", util.ErrExternalService)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: unexpected status code %d: %s", util.ErrExternalService, resp.StatusCode, string(body))
	}

	var result RecordingSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	util.DebugLog("MusicBrainz: %d recording(s) for '%s'", len(result.Recordings), query)
	return parseRecordings(result.Recordings), nil
}

func parseRecordings(recordings []Recording) []meta.Candidate {
	results := make([]meta.Candidate, 0, len(recordings))
	for _, rec := range recordings {
		c := meta.Candidate{
			Title:    rec.Title,
			Artist:   joinArtistCredits(rec.ArtistCredit),
			Source:   meta.SourceCatalog,
			Provider: "MusicBrainz",
		}

		if rel, ok := pickRelease(rec.Releases); ok {
			c.Album = rel.Title
			c.CoverURL = fmt.Sprintf(coverArtURL, rel.ID)
		}
		if tag, ok := topTag(rec.Tags); ok {
			c.Genre = tag
		}

		results = append(results, c)
	}
	return results
}

// joinArtistCredits rebuilds the credited artist string, e.g. "A feat. B"
func joinArtistCredits(credits []ArtistCredit) string {
	var b strings.Builder
	for i, ac := range credits {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		b.WriteString(name)
		if ac.JoinPhrase != "" {
			b.WriteString(ac.JoinPhrase)
		} else if i < len(credits)-1 {
			b.WriteString(", ")
		}
	}
	return strings.TrimSpace(b.String())
}

// pickRelease prefers the first official release, otherwise the first listed
func pickRelease(releases []Release) (Release, bool) {
	if len(releases) == 0 {
		return Release{}, false
	}
	for _, rel := range releases {
		if rel.Status == "Official" {
			return rel, true
		}
	}
	return releases[0], true
}

func topTag(tags []Tag) (string, bool) {
	best := -1
	for i, t := range tags {
		if best < 0 || t.Count > tags[best].Count {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return tags[best].Name, true
}

// waitForRateLimit spaces requests at least interval apart
func (c *Client) waitForRateLimit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	wait := c.interval - time.Since(c.lastRequest)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	c.lastRequest = time.Now()
	return nil
}
