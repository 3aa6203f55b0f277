// Package jiosaavn searches a JioSaavn-compatible song API, the regional
// catalog for Indian film music.
package jiosaavn

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/franz/vaultify/internal/meta"
	"github.com/franz/vaultify/internal/util"
)

// DefaultBaseURL is the public saavn.dev deployment
const DefaultBaseURL = "https://saavn.dev"

const userAgent = "vaultify/1.0"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is a JioSaavn search client
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// New creates a client against baseURL, or DefaultBaseURL when empty
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Name() string { return "jiosaavn" }

// Search queries the song search endpoint
func (c *Client) Search(ctx context.Context, query string, limit int) ([]meta.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	reqURL := fmt.Sprintf("%s/api/search/songs?%s", c.apiURL, params.Encode())

	util.DebugLog("JioSaavn API: searching for '%s'", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create jiosaavn request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: jiosaavn search request failed: %v", util.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: jiosaavn search returned %d: %s", util.ErrExternalService, resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode jiosaavn response: %w", err)
	}

	results := parseSongs(searchResp.Data.Results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func parseSongs(songs []song) []meta.Candidate {
	var results []meta.Candidate
	for _, s := range songs {
		title := decode(s.Name)
		if title == "" {
			title = decode(s.Title)
		}
		if title == "" {
			continue
		}

		results = append(results, meta.Candidate{
			Title:    title,
			Artist:   decode(s.artistNames()),
			Album:    decode(s.Album.Name),
			Genre:    genreFor(s.Language),
			CoverURL: bestImage(s.Image),
			Source:   meta.SourceCatalog,
			Provider: "JioSaavn",
		})
	}
	return results
}

// decode unescapes the HTML entities JioSaavn leaves in names
func decode(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}

// genreFor reports the language as a genre hint, e.g. "Tamil"
func genreFor(language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(language)
	return string(unicode.ToUpper(r)) + language[size:]
}

// bestImage picks the largest artwork, which the API lists last
func bestImage(images []image) string {
	for i := len(images) - 1; i >= 0; i-- {
		if u := images[i].href(); u != "" {
			return u
		}
	}
	return ""
}

// JioSaavn API response types. Older deployments use primaryArtists and
// image.link; newer ones artists.primary and image.url.

type searchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Total   int    `json:"total"`
		Results []song `json:"results"`
	} `json:"data"`
}

type song struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Title          string  `json:"title"`
	Language       string  `json:"language"`
	PrimaryArtists string  `json:"primaryArtists"`
	Artists        artists `json:"artists"`
	Album          album   `json:"album"`
	Image          []image `json:"image"`
}

func (s song) artistNames() string {
	if len(s.Artists.Primary) > 0 {
		names := make([]string, 0, len(s.Artists.Primary))
		for _, a := range s.Artists.Primary {
			if a.Name != "" {
				names = append(names, a.Name)
			}
		}
		return strings.Join(names, ", ")
	}
	return s.PrimaryArtists
}

type artists struct {
	Primary []artist `json:"primary"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type album struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type image struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
	Link    string `json:"link"`
}

func (i image) href() string {
	if i.URL != "" {
		return i.URL
	}
	return i.Link
}
