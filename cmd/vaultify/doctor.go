package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/franz/vaultify/internal/catalog"
	"github.com/franz/vaultify/internal/config"
	"github.com/franz/vaultify/internal/objstore"
	"github.com/franz/vaultify/internal/store"
	"github.com/franz/vaultify/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure vaultify can operate correctly.

This command checks:
- Configuration validity
- Object storage reachability and the metadata document
- Catalog provider credentials
- Catalog cache accessibility and integrity
- SQLite version compatibility
- Scratch directory permissions

Use this command to troubleshoot issues before starting the server.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().Duration("timeout", 15*time.Second, "timeout for the storage check")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== Vaultify Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	cfg, res := checkConfig()
	results = append(results, res)
	results = append(results, checkSQLite())

	if cfg != nil {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		bucket, err := openBucket(ctx, cfg)
		if err != nil {
			results = append(results, checkResult{
				name:    "Storage",
				error:   true,
				message: fmt.Sprintf("cannot open %s storage: %v", cfg.Storage.Backend, err),
			})
		} else {
			results = append(results, checkStorage(ctx, bucket))
		}

		results = append(results, checkProviders(cfg.Catalog)...)
		results = append(results, checkCache(cfg.Catalog.CachePath, cfg.Catalog.CacheTTL))
		results = append(results, checkScratchDir(cfg.Ingest.ScratchDir))
	}

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before starting vaultify.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! vaultify is ready.")
	}

	return nil
}

// checkConfig loads and validates the configuration
func checkConfig() (*config.Config, checkResult) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, checkResult{
			name:    "Configuration",
			error:   true,
			message: err.Error(),
		}
	}
	return cfg, checkResult{
		name:    "Configuration",
		message: fmt.Sprintf("%s storage, port %d", cfg.Storage.Backend, cfg.Port),
	}
}

// checkSQLite verifies the embedded SQLite used by the catalog cache
func checkSQLite() checkResult {
	version := catalog.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkStorage lists the metadata prefix and decodes the metadata document
func checkStorage(ctx context.Context, bucket objstore.Bucket) checkResult {
	objects, err := bucket.List(ctx, store.MetadataPrefix)
	if err != nil {
		return checkResult{
			name:    "Storage",
			error:   true,
			message: fmt.Sprintf("cannot list bucket: %v", err),
		}
	}

	doc, version, err := store.New(bucket).Load(ctx)
	if err != nil {
		return checkResult{
			name:    "Storage",
			error:   true,
			message: fmt.Sprintf("cannot read metadata document: %v", err),
		}
	}
	if version == "" {
		return checkResult{
			name:    "Storage",
			message: fmt.Sprintf("reachable, no metadata document yet (%d legacy records)", len(objects)),
		}
	}

	conditional := "conditional writes off"
	if bucket.SupportsConditional() {
		conditional = "conditional writes on"
	}
	return checkResult{
		name:    "Storage",
		message: fmt.Sprintf("reachable, %d songs, %d playlists, %s", len(doc.Songs), len(doc.Playlists), conditional),
	}
}

// checkProviders reports one result per configured catalog provider
func checkProviders(cfg config.CatalogConfig) []checkResult {
	if len(cfg.Providers) == 0 {
		return []checkResult{{
			name:    "Catalog providers",
			warning: true,
			message: "none configured, metadata comes from tags and file names only",
		}}
	}

	var results []checkResult
	for _, name := range cfg.Providers {
		r := checkResult{name: fmt.Sprintf("Catalog provider %s", name)}
		switch name {
		case catalog.ProviderSpotify:
			if cfg.SpotifyClientID == "" || cfg.SpotifyClientSecret == "" {
				r.warning = true
				r.message = "SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET not set, provider disabled"
			} else {
				r.message = "client credentials configured"
			}
		default:
			r.message = "no credentials required"
		}
		results = append(results, r)
	}
	return results
}

// checkCache opens the catalog cache and verifies its integrity
func checkCache(path string, ttl time.Duration) checkResult {
	if path == "" {
		return checkResult{
			name:    "Catalog cache",
			warning: true,
			message: "disabled (catalog.cache_path is empty)",
		}
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return checkResult{
			name:    "Catalog cache",
			message: fmt.Sprintf("%s (will be created on first run)", path),
		}
	}
	if err != nil {
		return checkResult{
			name:    "Catalog cache",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}
	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Catalog cache",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", path),
		}
	}

	cache, err := catalog.OpenCache(path, ttl)
	if err != nil {
		return checkResult{
			name:    "Catalog cache",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", path, err),
		}
	}
	defer cache.Close()

	if err := cache.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Catalog cache",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	stats, _ := cache.Stats()
	return checkResult{
		name: "Catalog cache",
		message: fmt.Sprintf("%s (%s, %d entries, %d hits)",
			path, humanize.IBytes(uint64(info.Size())), stats.Entries, stats.TotalHits),
	}
}

// checkScratchDir verifies uploads can be staged locally
func checkScratchDir(dir string) checkResult {
	if dir == "" {
		dir = os.TempDir()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return checkResult{
			name:    "Scratch directory",
			error:   true,
			message: fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}

	testFile := filepath.Join(dir, ".vaultify-write-test-"+uuid.New().String())
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Scratch directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", dir, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    "Scratch directory",
		message: fmt.Sprintf("%s (writable)", dir),
	}
}
