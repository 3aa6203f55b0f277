package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/franz/vaultify/internal/catalog"
	"github.com/franz/vaultify/internal/config"
	"github.com/franz/vaultify/internal/objstore"
	"github.com/franz/vaultify/internal/reconcile"
	"github.com/franz/vaultify/internal/report"
	"github.com/franz/vaultify/internal/store"
	"github.com/franz/vaultify/internal/util"
)

// app is everything a command needs to reconcile and store uploads
type app struct {
	cfg        *config.Config
	bucket     objstore.Bucket
	store      *store.Store
	cache      *catalog.Cache
	matcher    *catalog.Matcher
	events     *report.EventLogger
	reconciler *reconcile.Reconciler
}

// appOptions tweak how the app is assembled for a command
type appOptions struct {
	// defaultEventsDir is used when no events dir is configured; empty
	// disables the event log
	defaultEventsDir string
	onResult         func(reconcile.Result)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openBucket connects the configured storage backend
func openBucket(ctx context.Context, cfg *config.Config) (objstore.Bucket, error) {
	if cfg.Storage.Backend == config.BackendLocal {
		util.DebugLog("Using local storage at %s", cfg.Storage.LocalDir)
		local, err := objstore.NewLocal(cfg.Storage.LocalDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}

	util.DebugLog("Using bucket %s at %s", cfg.Storage.S3.Bucket, cfg.Storage.S3.Endpoint)
	s3, err := objstore.NewS3(ctx, cfg.Storage.S3)
	if err != nil {
		return nil, err
	}
	return s3, nil
}

// openCache opens the catalog cache; a broken cache only costs lookups
func openCache(cfg *config.Config) *catalog.Cache {
	if cfg.Catalog.CachePath == "" {
		return nil
	}
	cache, err := catalog.OpenCache(cfg.Catalog.CachePath, cfg.Catalog.CacheTTL)
	if err != nil {
		util.WarnLog("Catalog cache disabled: %v", err)
		return nil
	}
	return cache
}

// eventLevel follows the event config, narrowed or widened by the
// quiet and verbose flags
func eventLevel(cfg *config.Config) report.EventLevel {
	switch {
	case viper.GetBool("quiet"):
		return report.LevelWarning
	case viper.GetBool("verbose"):
		return report.LevelDebug
	default:
		return report.ParseLevel(cfg.EventLevel)
	}
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	bucket, err := openBucket(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &app{cfg: cfg, bucket: bucket, store: store.New(bucket)}

	a.cache = openCache(cfg)
	providers, err := catalog.BuildProviders(cfg.Catalog.Providers, cfg.Catalog.Settings, a.cache)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.matcher = catalog.NewMatcher(&catalog.MatcherConfig{
		Providers: providers,
		Limit:     cfg.Catalog.Limit,
		Timeout:   cfg.Catalog.Timeout,
	})

	eventsDir := cfg.EventsDir
	if eventsDir == "" {
		eventsDir = opts.defaultEventsDir
	}
	a.events = report.NullLogger()
	if eventsDir != "" {
		logger, err := report.NewEventLogger(eventsDir, eventLevel(cfg))
		if err != nil {
			util.WarnLog("Failed to create event logger: %v", err)
		} else {
			a.events = logger
			util.InfoLog("Event log: %s", logger.Path())
		}
	}

	a.reconciler = reconcile.New(&reconcile.Config{
		Matcher:       a.matcher,
		Bucket:        bucket,
		Store:         a.store,
		Events:        a.events,
		Workers:       cfg.Ingest.Workers,
		CoverFallback: cfg.Ingest.CoverFallback,
		ScratchDir:    cfg.Ingest.ScratchDir,
		MaxArchive:    cfg.Ingest.MaxArchiveSize,
		URLTTL:        cfg.Ingest.URLTTL,
		OnResult:      opts.onResult,
	})

	return a, nil
}

// Close releases the cache and flushes the event log
func (a *app) Close() {
	if a.events != nil {
		a.events.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
}
