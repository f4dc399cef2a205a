package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
)

// CatalogConfig configures a remote catalog-search backend.
type CatalogConfig struct {
	// Name identifies the backend; also used as the candidate source.
	Name string `yaml:"name"`

	// Endpoint is the JSON-RPC URL of the catalog service.
	Endpoint string `yaml:"endpoint"`

	// Tool is the remote tool name passed in params.name.
	Tool string `yaml:"tool"`

	// DomainSuffix restricts the backend to sites with this suffix
	// (e.g. ".myshopify.com"). Empty means any site.
	DomainSuffix string `yaml:"domain_suffix"`

	Country  string        `yaml:"country"`
	Language string        `yaml:"language"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CatalogBackend retrieves candidates from a remote catalog-search API
// speaking a JSON-RPC tools/call protocol.
type CatalogBackend struct {
	cfg    CatalogConfig
	client *http.Client
	nextID atomic.Int64
	logger *zap.Logger
}

// NewCatalogBackend creates a catalog backend.
func NewCatalogBackend(cfg CatalogConfig, logger *zap.Logger) *CatalogBackend {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if cfg.Tool == "" {
		cfg.Tool = "search_catalog"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Name identifies the backend.
func (b *CatalogBackend) Name() string { return b.cfg.Name }

// CanHandle applies the configured domain-suffix pattern.
func (b *CatalogBackend) CanHandle(site string) bool {
	if b.cfg.DomainSuffix == "" {
		return true
	}
	return strings.HasSuffix(site, b.cfg.DomainSuffix)
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Name      string       `json:"name"`
	Arguments rpcArguments `json:"arguments"`
}

type rpcArguments struct {
	Query    string `json:"query"`
	Context  string `json:"context,omitempty"`
	Limit    int    `json:"limit"`
	Country  string `json:"country,omitempty"`
	Language string `json:"language,omitempty"`
}

type rpcResponse struct {
	Result struct {
		Products []catalogProduct `json:"products"`
		Content  []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type catalogProduct struct {
	URL   string         `json:"url"`
	Title string         `json:"title"`
	Name  string         `json:"name"`
	Price any            `json:"price"`
	Extra map[string]any `json:"-"`
}

// Retrieve calls the remote catalog and maps its products to candidates.
// The response may carry the product list directly or as JSON text inside
// a content block; both shapes are handled, and an absent or malformed
// list means zero results, not an error.
func (b *CatalogBackend) Retrieve(ctx context.Context, query, site string, limit int) ([]model.CandidateItem, error) {
	if limit <= 0 {
		limit = 10
	}

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		Method:  "tools/call",
		Params: rpcParams{
			Name: b.cfg.Tool,
			Arguments: rpcArguments{
				Query:    query,
				Limit:    limit,
				Country:  b.cfg.Country,
				Language: b.cfg.Language,
			},
		},
		ID: b.nextID.Add(1),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog %s returned status %d", b.cfg.Name, resp.StatusCode)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return nil, fmt.Errorf("catalog %s: decode response: %w", b.cfg.Name, err)
	}
	if rpc.Error != nil {
		return nil, fmt.Errorf("catalog %s: rpc error %d: %s", b.cfg.Name, rpc.Error.Code, rpc.Error.Message)
	}

	products := rpc.Result.Products
	if len(products) == 0 {
		products = b.productsFromContent(rpc)
	}

	items := make([]model.CandidateItem, 0, len(products))
	for _, p := range products {
		name := p.Title
		if name == "" {
			name = p.Name
		}
		item := model.CandidateItem{
			URL:    p.URL,
			Name:   name,
			Site:   site,
			Source: b.cfg.Name,
		}
		if p.Price != nil {
			item.Payload = map[string]any{"price": p.Price}
		}
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

// productsFromContent handles the nested shape: a content block whose
// text is itself a JSON document holding the product list.
func (b *CatalogBackend) productsFromContent(rpc rpcResponse) []catalogProduct {
	for _, block := range rpc.Result.Content {
		if block.Type != "" && block.Type != "text" {
			continue
		}
		var nested struct {
			Products []catalogProduct `json:"products"`
		}
		if err := json.Unmarshal([]byte(block.Text), &nested); err != nil {
			b.logger.Debug("catalog content block is not a product document",
				zap.String("backend", b.cfg.Name))
			continue
		}
		if len(nested.Products) > 0 {
			return nested.Products
		}
	}
	return nil
}
