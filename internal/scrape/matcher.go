package scrape

import (
	"strings"

	"carsentry/pkg/models"
)

// Matcher decides whether a raw listing is relevant to a filter set. Only the
// fuzzy text dimensions (brand, model) are its concern; numeric ranges are
// applied against stored fields by the query side.
type Matcher struct {
	aliases map[string][]string
}

// NewMatcher creates a Matcher with the given brand alias table. A nil table
// falls back to DefaultBrandAliases.
func NewMatcher(aliases map[string][]string) *Matcher {
	if aliases == nil {
		aliases = DefaultBrandAliases()
	}
	return &Matcher{aliases: aliases}
}

// DefaultBrandAliases maps normalized brand names to the transliterated
// variants that appear in listing text (Latin, Cyrillic, Japanese).
func DefaultBrandAliases() map[string][]string {
	return map[string][]string{
		"bmw":      {"BMW", "БМВ", "ビーエム", "ＢＭＷ"},
		"toyota":   {"Toyota", "Тойота", "トヨタ"},
		"honda":    {"Honda", "Хонда", "ホンダ"},
		"nissan":   {"Nissan", "Ниссан", "日産", "ニッサン"},
		"mercedes": {"Mercedes", "Benz", "Мерседес", "メルセデス", "ベンツ"},
		"audi":     {"Audi", "Ауди", "アウディ"},
		"mazda":    {"Mazda", "Мазда", "マツダ"},
		"subaru":   {"Subaru", "Субару", "スバル"},
		"lexus":    {"Lexus", "Лексус", "レクサス"},
	}
}

// BrandTerms returns the search terms for a brand filter value: the alias
// variants when the brand is known, otherwise the value itself.
func (m *Matcher) BrandTerms(brand string) []string {
	key := strings.ToLower(strings.TrimSpace(brand))
	if terms, ok := m.aliases[key]; ok {
		return terms
	}
	return []string{strings.TrimSpace(brand)}
}

// Matches reports whether a listing satisfies the text filters. The brand
// filter matches against both the brand and model fields because scraped
// titles frequently carry the manufacturer inside the model text.
func (m *Matcher) Matches(l models.Listing, filters map[string]string) bool {
	if brand := filters["brand"]; strings.TrimSpace(brand) != "" {
		if !m.matchesBrand(l, brand) {
			return false
		}
	}
	if model := filters["model"]; strings.TrimSpace(model) != "" {
		if !containsFold(l.Model, model) {
			return false
		}
	}
	return true
}

// Filter returns the listings that satisfy the text filters, preserving order.
func (m *Matcher) Filter(listings []models.Listing, filters map[string]string) []models.Listing {
	var matched []models.Listing
	for _, l := range listings {
		if m.Matches(l, filters) {
			matched = append(matched, l)
		}
	}
	return matched
}

func (m *Matcher) matchesBrand(l models.Listing, brand string) bool {
	for _, term := range m.BrandTerms(brand) {
		if containsFold(l.Brand, term) || containsFold(l.Model, term) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}
