package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
	"github.com/sitequery-ai/search-orchestrator/pkg/metrics"
)

// SiteMapper resolves cross-site fallback routing: it infers the item
// type a query is after and maps an item type back to the sites whose
// configuration declares it.
type SiteMapper interface {
	InferItemType(query string) string
	SitesForType(itemType string) []string
}

// RouterConfig tunes the retrieval router.
type RouterConfig struct {
	// AggregateTimeout bounds the whole fan-out. Individual backend
	// failures inside the window are tolerated.
	AggregateTimeout time.Duration

	// FallbackCacheTTL bounds staleness of the item-type → sites table.
	FallbackCacheTTL time.Duration
}

// Router selects backends for a query and site, fans out concurrently,
// and merges their candidates. One failed backend never fails the query.
type Router struct {
	backends []Backend
	sites    SiteMapper
	timeout  time.Duration
	fallback *gocache.Cache
	logger   *zap.Logger
}

// NewRouter creates a router. Backends are registered in priority order.
func NewRouter(sites SiteMapper, cfg RouterConfig, logger *zap.Logger) *Router {
	timeout := cfg.AggregateTimeout
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	ttl := cfg.FallbackCacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		sites:    sites,
		timeout:  timeout,
		fallback: gocache.New(ttl, 2*ttl),
		logger:   logger,
	}
}

// Register appends a backend. Registration order decides both probe
// order and which copy wins when backends return the same URL.
func (r *Router) Register(b Backend) {
	r.backends = append(r.backends, b)
}

// invocation is one (backend, site) pair selected for a query.
type invocation struct {
	backend Backend
	site    string
}

// Route retrieves candidates for the query. Partial results are accepted;
// the call fails only when every selected backend failed, and that error
// wraps model.ErrNoAnswer. No selected backends, or selected backends
// returning nothing, is an empty result.
func (r *Router) Route(ctx context.Context, query, site string, limit int) ([]model.CandidateItem, error) {
	invocations := r.selectBackends(query, site)
	if len(invocations) == 0 {
		r.logger.Debug("no backend handles site", zap.String("site", site))
		return []model.CandidateItem{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make([][]model.CandidateItem, len(invocations))
	failures := make([]error, len(invocations))

	g, gctx := errgroup.WithContext(ctx)
	for i, inv := range invocations {
		i, inv := i, inv
		g.Go(func() error {
			start := time.Now()
			items, err := inv.backend.Retrieve(gctx, query, inv.site, limit)
			elapsed := time.Since(start)
			if err != nil {
				failures[i] = &model.RetrievalError{Backend: inv.backend.Name(), Err: err}
				metrics.RecordRetrieval(inv.backend.Name(), "error", elapsed.Seconds())
				r.logger.Warn("backend retrieval failed",
					zap.String("backend", inv.backend.Name()),
					zap.String("site", inv.site),
					zap.Error(err))
				// A backend failure must not cancel its siblings.
				return nil
			}
			results[i] = items
			metrics.RecordRetrieval(inv.backend.Name(), "ok", elapsed.Seconds())
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, err := range failures {
		if err != nil {
			failed++
		}
	}
	if failed == len(invocations) {
		return nil, fmt.Errorf("all %d backends failed: %w", failed, model.ErrNoAnswer)
	}

	return mergeCandidates(results), nil
}

// selectBackends probes capability in registration order, falling back to
// cross-site routing when no backend handles the requested site.
func (r *Router) selectBackends(query, site string) []invocation {
	var invocations []invocation
	for _, b := range r.backends {
		if b.CanHandle(site) {
			invocations = append(invocations, invocation{backend: b, site: site})
		}
	}
	if len(invocations) > 0 {
		return invocations
	}

	itemType := r.sites.InferItemType(query)
	if itemType == "" {
		return nil
	}
	for _, fallbackSite := range r.sitesForType(itemType) {
		if fallbackSite == site {
			continue
		}
		for _, b := range r.backends {
			if b.CanHandle(fallbackSite) {
				invocations = append(invocations, invocation{backend: b, site: fallbackSite})
			}
		}
	}
	if len(invocations) > 0 {
		r.logger.Info("cross-site fallback routing",
			zap.String("site", site),
			zap.String("item_type", itemType),
			zap.Int("backends", len(invocations)))
	}
	return invocations
}

// sitesForType consults the cached item-type table. The table is static
// per deployment, so a short TTL only bounds config-reload staleness.
func (r *Router) sitesForType(itemType string) []string {
	if cached, ok := r.fallback.Get(itemType); ok {
		return cached.([]string)
	}
	sites := r.sites.SitesForType(itemType)
	r.fallback.Set(itemType, sites, gocache.DefaultExpiration)
	return sites
}

// mergeCandidates concatenates per-backend results in registration order
// and drops duplicate URLs, keeping the first-seen copy.
func mergeCandidates(results [][]model.CandidateItem) []model.CandidateItem {
	merged := make([]model.CandidateItem, 0)
	seen := make(map[string]bool)
	for _, items := range results {
		for _, item := range items {
			key := strings.ToLower(item.URL)
			if key != "" && seen[key] {
				continue
			}
			if key != "" {
				seen[key] = true
			}
			merged = append(merged, item)
		}
	}
	return merged
}
