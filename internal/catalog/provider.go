// Package catalog searches external music catalogs for candidate metadata.
package catalog

import (
	"context"

	"github.com/franz/vaultify/internal/meta"
)

// Provider is one external music catalog. Implementations convert their
// response shapes into meta.Candidate before returning.
type Provider interface {
	// Name identifies the provider in logs, cache keys and candidates
	Name() string
	// Search returns up to limit track candidates for a free-text query.
	// An empty result is not an error.
	Search(ctx context.Context, query string, limit int) ([]meta.Candidate, error)
}
