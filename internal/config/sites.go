package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sitequery-ai/search-orchestrator/internal/retrieval"
)

// SiteConfig describes one content collection.
type SiteConfig struct {
	// ItemTypes names the kinds of items the site serves (e.g. recipe,
	// product). Used for cross-site fallback routing.
	ItemTypes []string `yaml:"item_types"`
}

// SiteCatalog is the per-deployment site and backend catalog, loaded once
// at startup from YAML.
type SiteCatalog struct {
	// Sites maps site identifier to its configuration.
	Sites map[string]SiteConfig `yaml:"sites"`

	// ItemTypeKeywords maps an item type to query keywords that suggest
	// it, used to infer an item type from free text.
	ItemTypeKeywords map[string][]string `yaml:"item_types"`

	// Catalogs configures remote catalog-search backends.
	Catalogs []retrieval.CatalogConfig `yaml:"catalogs"`
}

// LoadSiteCatalog reads the site catalog from a YAML file.
func LoadSiteCatalog(path string) (*SiteCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load site catalog: %w", err)
	}
	var cat SiteCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse site catalog %s: %w", path, err)
	}
	return &cat, nil
}

// SitesForType returns every site whose configuration declares the given
// item type, in stable order.
func (c *SiteCatalog) SitesForType(itemType string) []string {
	var sites []string
	for site, sc := range c.Sites {
		for _, t := range sc.ItemTypes {
			if t == itemType {
				sites = append(sites, site)
				break
			}
		}
	}
	sort.Strings(sites)
	return sites
}

// InferItemType guesses the item type a query is after from configured
// keywords. Returns the empty string when nothing matches.
func (c *SiteCatalog) InferItemType(query string) string {
	q := strings.ToLower(query)

	types := make([]string, 0, len(c.ItemTypeKeywords))
	for t := range c.ItemTypeKeywords {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		for _, kw := range c.ItemTypeKeywords[t] {
			if strings.Contains(q, strings.ToLower(kw)) {
				return t
			}
		}
	}
	return ""
}
