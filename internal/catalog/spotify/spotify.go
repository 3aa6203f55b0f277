// Package spotify searches the Spotify Web API with client-credentials auth.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/franz/vaultify/internal/meta"
	"github.com/franz/vaultify/internal/util"
)

// ErrMissingCredentials is returned by New when the client id or secret is empty
var ErrMissingCredentials = errors.New("spotify client id and secret are required")

// Config holds Spotify client configuration
type Config struct {
	ClientID     string
	ClientSecret string
	// TokenURL and APIURL override the Spotify endpoints
	TokenURL string
	APIURL   string
}

// Client is a Spotify track search client
type Client struct {
	api *spotify.Client
}

// New creates a client. The access token is fetched lazily on first search
// and refreshed by the oauth2 transport.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: %w", util.ErrInvalidConfig, ErrMissingCredentials)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}

	var opts []spotify.ClientOption
	if cfg.APIURL != "" {
		base := cfg.APIURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, spotify.WithBaseURL(base))
	}

	return &Client{
		api: spotify.New(creds.Client(context.Background()), opts...),
	}, nil
}

func (c *Client) Name() string { return "spotify" }

// Search returns tracks matching the free-text query
func (c *Client) Search(ctx context.Context, query string, limit int) ([]meta.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	util.DebugLog("Spotify API: searching for '%s'", query)

	var opts []spotify.RequestOption
	if limit > 0 {
		opts = append(opts, spotify.Limit(limit))
	}

	result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: spotify search failed: %v", util.ErrExternalService, err)
	}
	if result == nil || result.Tracks == nil {
		return nil, nil
	}

	return parseTracks(result.Tracks.Tracks), nil
}

func parseTracks(tracks []spotify.FullTrack) []meta.Candidate {
	results := make([]meta.Candidate, 0, len(tracks))
	for _, track := range tracks {
		names := make([]string, 0, len(track.Artists))
		for _, a := range track.Artists {
			names = append(names, a.Name)
		}

		var cover string
		if len(track.Album.Images) > 0 {
			cover = track.Album.Images[0].URL
		}

		results = append(results, meta.Candidate{
			Title:    track.Name,
			Artist:   strings.Join(names, ", "),
			Album:    track.Album.Name,
			CoverURL: cover,
			Source:   meta.SourceCatalog,
			Provider: "Spotify",
		})
	}
	return results
}
