package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/franz/vaultify/internal/meta"
	"github.com/franz/vaultify/internal/util"
)

const (
	// DefaultLimit is the per-query result cap requested from providers
	DefaultLimit = 5
	// DefaultTimeout bounds a single provider call
	DefaultTimeout = 8 * time.Second
	// MaxProviders is the number of providers consulted per query
	MaxProviders = 2
)

// Matcher queries providers in priority order and collects unique candidates
type Matcher struct {
	providers []Provider
	limit     int
	timeout   time.Duration
}

// MatcherConfig holds matcher configuration
type MatcherConfig struct {
	Providers []Provider
	Limit     int
	Timeout   time.Duration
}

// NewMatcher creates a matcher. Providers beyond MaxProviders are ignored.
func NewMatcher(cfg *MatcherConfig) *Matcher {
	if cfg == nil {
		cfg = &MatcherConfig{}
	}

	providers := cfg.Providers
	if len(providers) > MaxProviders {
		util.WarnLog("Only the first %d catalog providers are used", MaxProviders)
		providers = providers[:MaxProviders]
	}

	m := &Matcher{
		providers: providers,
		limit:     cfg.Limit,
		timeout:   cfg.Timeout,
	}
	if m.limit <= 0 {
		m.limit = DefaultLimit
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	return m
}

// Providers returns the providers in priority order
func (m *Matcher) Providers() []Provider {
	return m.providers
}

// Match runs the queries and returns candidates deduplicated by exact
// (title, artist, album). For each query the first provider with a
// non-empty answer wins. Provider failures are logged and skipped, so
// Match never fails; with every provider down it returns nil.
func (m *Matcher) Match(ctx context.Context, queries []Query) []meta.Candidate {
	if len(m.providers) == 0 {
		return nil
	}

	var out []meta.Candidate
	seen := make(map[string]bool)

	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		if q.Widening && len(out) >= m.limit {
			continue
		}

		for _, c := range m.search(ctx, q.Text) {
			key := c.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}

	return out
}

// search asks each provider in turn until one has results
func (m *Matcher) search(ctx context.Context, query string) []meta.Candidate {
	for _, p := range m.providers {
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		results, err := p.Search(callCtx, query, m.limit)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				util.WarnLog("Catalog %s timed out for %q", p.Name(), query)
			} else {
				util.WarnLog("Catalog %s failed for %q: %v", p.Name(), query, err)
			}
			continue
		}
		if len(results) == 0 {
			util.DebugLog("Catalog %s: no results for %q", p.Name(), query)
			continue
		}

		util.DebugLog("Catalog %s: %d result(s) for %q", p.Name(), len(results), query)
		tagged := make([]meta.Candidate, len(results))
		for i, c := range results {
			c.Source = meta.SourceCatalog
			if c.Provider == "" {
				c.Provider = p.Name()
			}
			tagged[i] = c
		}
		return tagged
	}
	return nil
}
