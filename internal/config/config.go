// Package config builds the service configuration from flags, environment,
// an optional config file and .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/franz/vaultify/internal/catalog"
	"github.com/franz/vaultify/internal/objstore"
	"github.com/franz/vaultify/internal/util"
)

// EnvPrefix prefixes every environment variable read by viper
const EnvPrefix = "VAULTIFY"

// Storage backends
const (
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Config is the fully resolved configuration, built once at startup
type Config struct {
	Port int

	Storage StorageConfig
	Catalog CatalogConfig
	Ingest  IngestConfig

	EventsDir  string
	EventLevel string
}

// StorageConfig selects and configures the object bucket
type StorageConfig struct {
	Backend  string
	LocalDir string
	S3       objstore.S3Config
}

// CatalogConfig configures the catalog matcher and its providers
type CatalogConfig struct {
	Providers []string
	Limit     int
	Timeout   time.Duration
	CachePath string // empty disables the cache
	CacheTTL  time.Duration
	catalog.Settings
}

// IngestConfig bounds upload processing
type IngestConfig struct {
	Workers         int
	ScratchDir      string
	MaxArchiveSize  int64
	MaxUploadSize   int64
	DownloadTimeout time.Duration
	URLTTL          time.Duration
	CoverFallback   bool
}

// aliases binds the unprefixed variable names older deployments used
var aliases = map[string][]string{
	"port":                      {"PORT"},
	"storage.s3.region":         {"B2_REGION"},
	"storage.s3.endpoint":       {"B2_ENDPOINT"},
	"storage.s3.access_key_id":  {"B2_ACCESS_KEY_ID"},
	"storage.s3.secret_key":     {"B2_SECRET_ACCESS_KEY"},
	"storage.s3.bucket":         {"B2_BUCKET_NAME"},
	"catalog.spotify.client_id": {"SPOTIFY_CLIENT_ID"},
	"catalog.spotify.secret":    {"SPOTIFY_CLIENT_SECRET"},
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 3001)
	v.SetDefault("storage.backend", BackendS3)
	v.SetDefault("storage.local_dir", "data/objects")
	v.SetDefault("storage.s3.region", "us-east-005")
	v.SetDefault("storage.s3.conditional", false)
	v.SetDefault("catalog.providers", catalog.DefaultProviders)
	v.SetDefault("catalog.limit", catalog.DefaultLimit)
	v.SetDefault("catalog.timeout", catalog.DefaultTimeout)
	v.SetDefault("catalog.cache_path", "vaultify-cache.db")
	v.SetDefault("catalog.cache_ttl", 24*time.Hour)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.max_archive_size", "2GiB")
	v.SetDefault("ingest.max_upload_size", "512MiB")
	v.SetDefault("ingest.download_timeout", 2*time.Minute)
	v.SetDefault("ingest.url_ttl", time.Hour)
	v.SetDefault("ingest.cover_fallback", true)
	v.SetDefault("events.level", "info")
}

// BindEnv enables VAULTIFY_* variables (dots become underscores) and the
// legacy aliases
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("%w: %s: %v", util.ErrInvalidConfig, path, err)
		}
		util.DebugLog("Loaded environment from %s", path)
	}
	return nil
}

// Load resolves the configuration from v and validates it
func Load(v *viper.Viper) (*Config, error) {
	maxArchive, err := parseSize(v, "ingest.max_archive_size")
	if err != nil {
		return nil, err
	}
	maxUpload, err := parseSize(v, "ingest.max_upload_size")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port: v.GetInt("port"),
		Storage: StorageConfig{
			Backend:  strings.ToLower(v.GetString("storage.backend")),
			LocalDir: v.GetString("storage.local_dir"),
			S3: objstore.S3Config{
				Region:            v.GetString("storage.s3.region"),
				Endpoint:          v.GetString("storage.s3.endpoint"),
				AccessKeyID:       v.GetString("storage.s3.access_key_id"),
				SecretAccessKey:   v.GetString("storage.s3.secret_key"),
				Bucket:            v.GetString("storage.s3.bucket"),
				ConditionalWrites: v.GetBool("storage.s3.conditional"),
			},
		},
		Catalog: CatalogConfig{
			Providers: normalizeNames(v.GetStringSlice("catalog.providers")),
			Limit:     v.GetInt("catalog.limit"),
			Timeout:   v.GetDuration("catalog.timeout"),
			CachePath: v.GetString("catalog.cache_path"),
			CacheTTL:  v.GetDuration("catalog.cache_ttl"),
			Settings: catalog.Settings{
				JioSaavnURL:         v.GetString("catalog.jiosaavn.url"),
				MusicBrainzURL:      v.GetString("catalog.musicbrainz.url"),
				SpotifyClientID:     v.GetString("catalog.spotify.client_id"),
				SpotifyClientSecret: v.GetString("catalog.spotify.secret"),
			},
		},
		Ingest: IngestConfig{
			Workers:         v.GetInt("ingest.workers"),
			ScratchDir:      v.GetString("ingest.scratch_dir"),
			MaxArchiveSize:  maxArchive,
			MaxUploadSize:   maxUpload,
			DownloadTimeout: v.GetDuration("ingest.download_timeout"),
			URLTTL:          v.GetDuration("ingest.url_ttl"),
			CoverFallback:   v.GetBool("ingest.cover_fallback"),
		},
		EventsDir:  v.GetString("events.dir"),
		EventLevel: v.GetString("events.level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", util.ErrInvalidConfig, c.Port)
	}

	switch c.Storage.Backend {
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("%w: storage.s3.bucket (B2_BUCKET_NAME) is required", util.ErrInvalidConfig)
		}
		if c.Storage.S3.AccessKeyID != "" && c.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("%w: storage.s3.secret_key is required with an access key id", util.ErrInvalidConfig)
		}
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("%w: storage.local_dir is required", util.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", util.ErrInvalidConfig, c.Storage.Backend)
	}

	if err := catalog.ValidateNames(c.Catalog.Providers); err != nil {
		return err
	}
	if c.Catalog.Limit <= 0 {
		return fmt.Errorf("%w: catalog.limit must be positive", util.ErrInvalidConfig)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("%w: catalog.timeout must be positive", util.ErrInvalidConfig)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("%w: ingest.workers must be positive", util.ErrInvalidConfig)
	}

	return nil
}

// parseSize reads a human size such as "2GiB" or a plain byte count
func parseSize(v *viper.Viper, key string) (int64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", util.ErrInvalidConfig, key, err)
	}
	return int64(n), nil
}

// normalizeNames lowercases provider names and drops blanks; env values
// arrive as one comma-separated string
func normalizeNames(names []string) []string {
	var out []string
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
