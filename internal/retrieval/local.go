package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sitequery-ai/search-orchestrator/internal/llm"
	"github.com/sitequery-ai/search-orchestrator/internal/model"
	"github.com/sitequery-ai/search-orchestrator/internal/vector"
)

// DocAttributes is the per-id document record from the index sidecar.
// Entry i describes the document indexed under integer id i.
type DocAttributes struct {
	URL     string         `json:"url"`
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
}

// LocalBackend serves retrieval from an on-disk ANN index shard. The
// shard's sidecar metadata declares which sites (domains) it covers.
type LocalBackend struct {
	name     string
	store    vector.Store
	meta     *vector.Metadata
	docs     []DocAttributes
	domains  map[string]bool
	embedder llm.Embedder
	logger   *zap.Logger
}

// OpenLocalBackend loads an index artifact directory and its optional
// docs.json attribute file.
func OpenLocalBackend(name, dir string, embedder llm.Embedder, logger *zap.Logger) (*LocalBackend, error) {
	idx, meta, err := vector.LoadArtifact(dir, logger)
	if err != nil {
		return nil, err
	}
	docs, err := loadDocAttributes(filepath.Join(dir, "docs.json"), meta.Count)
	if err != nil {
		return nil, fmt.Errorf("load docs for %s: %w", dir, err)
	}
	return NewLocalBackend(name, idx, meta, docs, embedder, logger), nil
}

// OpenRemoteBackend serves the same artifact layout with proximity
// search delegated to a remote vector store. The sidecar metadata and
// document attributes stay local; only the vectors live remotely.
func OpenRemoteBackend(name, dir string, store vector.Store, embedder llm.Embedder, logger *zap.Logger) (*LocalBackend, error) {
	meta, err := vector.LoadMetadata(dir)
	if err != nil {
		return nil, err
	}
	docs, err := loadDocAttributes(filepath.Join(dir, "docs.json"), meta.Count)
	if err != nil {
		return nil, fmt.Errorf("load docs for %s: %w", dir, err)
	}
	return NewLocalBackend(name, store, meta, docs, embedder, logger), nil
}

// NewLocalBackend wraps an already-built vector store.
func NewLocalBackend(name string, store vector.Store, meta *vector.Metadata, docs []DocAttributes, embedder llm.Embedder, logger *zap.Logger) *LocalBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	domains := make(map[string]bool, len(meta.Domains))
	for _, d := range meta.Domains {
		domains[d] = true
	}
	return &LocalBackend{
		name:     name,
		store:    store,
		meta:     meta,
		docs:     docs,
		domains:  domains,
		embedder: embedder,
		logger:   logger,
	}
}

// Name identifies the backend.
func (b *LocalBackend) Name() string { return b.name }

// CanHandle reports whether the shard indexes any vectors for the site.
func (b *LocalBackend) CanHandle(site string) bool {
	return b.domains[site]
}

// Retrieve embeds the query and returns the nearest documents belonging
// to the requested site.
func (b *LocalBackend) Retrieve(ctx context.Context, query, site string, limit int) ([]model.CandidateItem, error) {
	if limit <= 0 {
		limit = 10
	}

	vecs, err := b.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Over-fetch so that filtering by site still fills the limit. The
	// sidecar metadata is the authoritative count for both local and
	// remote shards; a remote store has no local Count until built.
	k := limit * 4
	if k > b.meta.Count {
		k = b.meta.Count
	}
	hits, err := b.store.Query(ctx, vecs[0], k)
	if err != nil {
		return nil, err
	}

	items := make([]model.CandidateItem, 0, limit)
	for _, h := range hits {
		if b.meta.Domains[h.ID] != site {
			continue
		}
		items = append(items, b.candidate(h, site))
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (b *LocalBackend) candidate(h vector.Result, site string) model.CandidateItem {
	item := model.CandidateItem{
		Site:           site,
		RetrievalScore: 1.0 / (1.0 + h.Distance),
		Source:         b.name,
	}
	if h.ID < len(b.docs) {
		doc := b.docs[h.ID]
		item.URL = doc.URL
		item.Name = doc.Name
		item.Payload = doc.Payload
	}
	if item.URL == "" {
		item.URL = fmt.Sprintf("https://%s/item/%d", site, h.ID)
	}
	return item
}

// loadDocAttributes reads the optional docs.json sidecar. A missing file
// is fine; a present but inconsistent one is not.
func loadDocAttributes(path string, count int) ([]DocAttributes, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var docs []DocAttributes
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	if len(docs) != count {
		return nil, fmt.Errorf("docs.json holds %d entries for %d vectors", len(docs), count)
	}
	return docs, nil
}
