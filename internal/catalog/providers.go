package catalog

import (
	"errors"
	"fmt"

	"github.com/franz/vaultify/internal/catalog/jiosaavn"
	"github.com/franz/vaultify/internal/catalog/musicbrainz"
	"github.com/franz/vaultify/internal/catalog/spotify"
	"github.com/franz/vaultify/internal/util"
)

// Provider names accepted in configuration
const (
	ProviderJioSaavn    = "jiosaavn"
	ProviderSpotify     = "spotify"
	ProviderMusicBrainz = "musicbrainz"
)

// DefaultProviders is the regional catalog first, the general one second
var DefaultProviders = []string{ProviderJioSaavn, ProviderSpotify}

// Settings carries per-provider endpoints and credentials
type Settings struct {
	JioSaavnURL         string
	MusicBrainzURL      string
	SpotifyClientID     string
	SpotifyClientSecret string
}

var (
	_ Provider = (*jiosaavn.Client)(nil)
	_ Provider = (*spotify.Client)(nil)
	_ Provider = (*musicbrainz.Client)(nil)
)

// ValidateNames checks a configured provider list
func ValidateNames(names []string) error {
	if len(names) > MaxProviders {
		return fmt.Errorf("%w: at most %d catalog providers, got %d", util.ErrInvalidConfig, MaxProviders, len(names))
	}
	seen := make(map[string]bool)
	for _, name := range names {
		switch name {
		case ProviderJioSaavn, ProviderSpotify, ProviderMusicBrainz:
		default:
			return fmt.Errorf("%w: unknown catalog provider %q", util.ErrInvalidConfig, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: catalog provider %q listed twice", util.ErrInvalidConfig, name)
		}
		seen[name] = true
	}
	return nil
}

// BuildProviders constructs the named providers in order, each wrapped
// with the cache when one is given. A provider whose credentials are
// missing is skipped with a warning so lookups degrade instead of failing.
func BuildProviders(names []string, s Settings, cache *Cache) ([]Provider, error) {
	if err := ValidateNames(names); err != nil {
		return nil, err
	}

	var providers []Provider
	for _, name := range names {
		var p Provider
		switch name {
		case ProviderJioSaavn:
			p = jiosaavn.New(s.JioSaavnURL)
		case ProviderMusicBrainz:
			p = musicbrainz.NewClient(s.MusicBrainzURL)
		case ProviderSpotify:
			client, err := spotify.New(spotify.Config{
				ClientID:     s.SpotifyClientID,
				ClientSecret: s.SpotifyClientSecret,
			})
			if errors.Is(err, spotify.ErrMissingCredentials) {
				util.WarnLog("Spotify credentials not set, catalog provider disabled")
				continue
			}
			if err != nil {
				return nil, err
			}
			p = client
		}
		providers = append(providers, WithCache(p, cache))
	}

	return providers, nil
}
