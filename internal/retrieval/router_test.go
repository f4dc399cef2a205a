package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
)

// fakeBackend serves canned results for the sites it claims.
type fakeBackend struct {
	name  string
	sites map[string]bool
	items []model.CandidateItem
	err   error
	delay time.Duration
	calls int
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) CanHandle(site string) bool { return b.sites[site] }

func (b *fakeBackend) Retrieve(ctx context.Context, _, _ string, _ int) ([]model.CandidateItem, error) {
	b.calls++
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.items, nil
}

// fixedMapper is a static item-type table.
type fixedMapper struct {
	itemType string
	sites    []string
}

func (m fixedMapper) InferItemType(string) string  { return m.itemType }
func (m fixedMapper) SitesForType(string) []string { return m.sites }

func item(url, site, source string) model.CandidateItem {
	return model.CandidateItem{URL: url, Site: site, Source: source}
}

func TestRouteSingleBackend(t *testing.T) {
	b := &fakeBackend{
		name:  "local",
		sites: map[string]bool{"example.com": true},
		items: []model.CandidateItem{item("https://example.com/a", "example.com", "local")},
	}
	r := NewRouter(fixedMapper{}, RouterConfig{}, nil)
	r.Register(b)

	got, err := r.Route(context.Background(), "q", "example.com", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com/a", got[0].URL)
}

func TestRouteSkipsBackendsThatCannotHandle(t *testing.T) {
	handles := &fakeBackend{name: "yes", sites: map[string]bool{"example.com": true}}
	ignores := &fakeBackend{name: "no", sites: map[string]bool{"other.com": true}}
	r := NewRouter(fixedMapper{}, RouterConfig{}, nil)
	r.Register(handles)
	r.Register(ignores)

	_, err := r.Route(context.Background(), "q", "example.com", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, handles.calls)
	assert.Equal(t, 0, ignores.calls, "capability is probed before any retrieval")
}

func TestRouteMergePreservesRegistrationOrder(t *testing.T) {
	first := &fakeBackend{
		name:  "first",
		sites: map[string]bool{"example.com": true},
		items: []model.CandidateItem{
			item("https://example.com/a", "example.com", "first"),
			item("https://example.com/b", "example.com", "first"),
		},
		delay: 20 * time.Millisecond, // slower, but still merged first
	}
	second := &fakeBackend{
		name:  "second",
		sites: map[string]bool{"example.com": true},
		items: []model.CandidateItem{
			item("https://example.com/c", "example.com", "second"),
		},
	}
	r := NewRouter(fixedMapper{}, RouterConfig{}, nil)
	r.Register(first)
	r.Register(second)

	got, err := r.Route(context.Background(), "q", "example.com", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Source)
	assert.Equal(t, "first", got[1].Source)
	assert.Equal(t, "second", got[2].Source)
}

func TestRouteDedupKeepsFirstSeen(t *testing.T) {
	first := &fakeBackend{
		name:  "first",
		sites: map[string]bool{"example.com": true},
		items: []model.CandidateItem{item("https://example.com/Dup", "example.com", "first")},
	}
	second := &fakeBackend{
		name:  "second",
		sites: map[string]bool{"example.com": true},
		items: []model.CandidateItem{
			item("https://example.com/dup", "example.com", "second"),
			item("https://example.com/unique", "example.com", "second"),
		},
	}
	r := NewRouter(fixedMapper{}, RouterConfig{}, nil)
	r.Register(first)
	r.Register(second)

	got, err := r.Route(context.Background(), "q", "example.com", 10)
	require.NoError(t, err)
	require.Len(t, got, 2, "case-insensitive duplicate URL is dropped")
	assert.Equal(t, "first", got[0].Source)
}

func TestRoutePartialFailureKeepsResults(t *testing.T) {
	failing := &fakeBackend{
		name:  "failing",
		sites: map[string]bool{"example.com": true},
		err:   errors.New("connection refused"),
	}
	healthy := &fakeBackend{
		name:  "healthy",
		sites: map[string]bool{"example.com": true},
		items: []model.CandidateItem{item("https://example.com/a", "example.com", "healthy")},
	}
	r := NewRouter(fixedMapper{}, RouterConfig{}, nil)
	r.Register(failing)
	r.Register(healthy)

	got, err := r.Route(context.Background(), "q", "example.com", 10)
	require.NoError(t, err, "one failed backend must not fail the query")
	require.Len(t, got, 1)
	assert.Equal(t, "healthy", got[0].Source)
}

func TestRouteAllFailedWrapsNoAnswer(t *testing.T) {
	r := NewRouter(fixedMapper{}, RouterConfig{}, nil)
	for _, name := range []string{"a", "b"} {
		r.Register(&fakeBackend{
			name:  name,
			sites: map[string]bool{"example.com": true},
			err:   errors.New("down"),
		})
	}

	_, err := r.Route(context.Background(), "q", "example.com", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNoAnswer)
}

func TestRouteNoBackendIsEmptyNotError(t *testing.T) {
	r := NewRouter(fixedMapper{}, RouterConfig{}, nil)
	r.Register(&fakeBackend{name: "other", sites: map[string]bool{"other.com": true}})

	got, err := r.Route(context.Background(), "q", "example.com", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRouteCrossSiteFallback(t *testing.T) {
	recipes := &fakeBackend{
		name:  "recipes",
		sites: map[string]bool{"recipes.example": true},
		items: []model.CandidateItem{item("https://recipes.example/pasta", "recipes.example", "recipes")},
	}
	r := NewRouter(fixedMapper{itemType: "recipe", sites: []string{"recipes.example"}}, RouterConfig{}, nil)
	r.Register(recipes)

	got, err := r.Route(context.Background(), "pasta recipe", "unknown.example", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recipes.example", got[0].Site)
}

func TestRouteFallbackSkipsOriginalSite(t *testing.T) {
	b := &fakeBackend{name: "b", sites: map[string]bool{}}
	r := NewRouter(fixedMapper{itemType: "recipe", sites: []string{"unknown.example"}}, RouterConfig{}, nil)
	r.Register(b)

	got, err := r.Route(context.Background(), "pasta recipe", "unknown.example", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, b.calls)
}

func TestRouteAggregateTimeout(t *testing.T) {
	slow := &fakeBackend{
		name:  "slow",
		sites: map[string]bool{"example.com": true},
		delay: time.Second,
	}
	fast := &fakeBackend{
		name:  "fast",
		sites: map[string]bool{"example.com": true},
		items: []model.CandidateItem{item("https://example.com/a", "example.com", "fast")},
	}
	r := NewRouter(fixedMapper{}, RouterConfig{AggregateTimeout: 50 * time.Millisecond}, nil)
	r.Register(slow)
	r.Register(fast)

	start := time.Now()
	got, err := r.Route(context.Background(), "q", "example.com", 10)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, "fast", got[0].Source)
}
