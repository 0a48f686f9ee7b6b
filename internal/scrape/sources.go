package scrape

import (
	"fmt"
	"strings"
)

// DefaultBaseURL is the global used-car index swept by unscoped refreshes.
const DefaultBaseURL = "https://www.carsensor.net/usedcar/"

// SourceResolver maps scoped filter sets to dedicated catalog entry points.
// Fetching a brand's own index page is both cheaper and more reliable than
// text-matching transliterated brand names out of the global sweep.
type SourceResolver struct {
	baseURL string
	brands  map[string]string
}

// NewSourceResolver creates a resolver over baseURL. A nil brand table falls
// back to DefaultBrandSources.
func NewSourceResolver(baseURL string, brands map[string]string) *SourceResolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if brands == nil {
		brands = DefaultBrandSources()
	}
	return &SourceResolver{baseURL: baseURL, brands: brands}
}

// DefaultBrandSources maps normalized brand names to their carsensor catalog
// paths, relative to the base URL.
func DefaultBrandSources() map[string]string {
	return map[string]string{
		"toyota":   "bTO/",
		"nissan":   "bNI/",
		"honda":    "bHO/",
		"mazda":    "bMA/",
		"subaru":   "bSB/",
		"lexus":    "bLE/",
		"bmw":      "bBM/",
		"mercedes": "bME/",
		"audi":     "bAU/",
	}
}

// Resolve picks the listing source for a filter set. When the brand filter
// maps to a dedicated catalog page, that page is fetched instead of the global
// index and the brand key is dropped from the returned match filters — the
// source is already scoped, so re-matching brand text would be redundant and
// brittle across transliterations.
func (r *SourceResolver) Resolve(filters map[string]string) (sourceURL string, matchFilters map[string]string) {
	brand := strings.ToLower(strings.TrimSpace(filters["brand"]))
	path, ok := r.brands[brand]
	if !ok {
		return r.baseURL, filters
	}

	scoped := make(map[string]string, len(filters))
	for k, v := range filters {
		if k == "brand" {
			continue
		}
		scoped[k] = v
	}
	return strings.TrimRight(r.baseURL, "/") + "/" + path, scoped
}

// PageURL builds the URL of the n-th listing page under a source. Page one is
// the bare index; later pages follow the indexN.html convention.
func PageURL(sourceURL string, page int) string {
	normalized := strings.TrimRight(sourceURL, "/") + "/"
	if page <= 1 {
		return normalized + "index.html"
	}
	return fmt.Sprintf("%sindex%d.html", normalized, page)
}
