// Package retrieval routes queries across heterogeneous search backends
// and merges their candidates.
package retrieval

import (
	"context"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
)

// Backend executes retrieval against one underlying source. CanHandle is
// a cheap, side-effect-free capability probe evaluated before any network
// call; Retrieve may perform network I/O and must honor the context
// deadline. On timeout or transport error Retrieve returns an error; the
// router treats that as "this backend abstained", never as zero results.
type Backend interface {
	// Name identifies the backend in logs, metrics and candidate sources.
	Name() string

	// CanHandle reports whether this backend can serve the given site.
	CanHandle(site string) bool

	// Retrieve returns up to limit candidates for the query.
	Retrieve(ctx context.Context, query, site string, limit int) ([]model.CandidateItem, error)
}
