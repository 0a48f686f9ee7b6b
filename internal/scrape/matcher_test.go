package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"carsentry/pkg/models"
)

func TestBrandTerms_KnownBrandExpandsAliases(t *testing.T) {
	m := NewMatcher(nil)

	terms := m.BrandTerms("BMW")
	assert.Contains(t, terms, "BMW")
	assert.Contains(t, terms, "БМВ")
	assert.Contains(t, terms, "ビーエム")
}

func TestBrandTerms_UnknownBrandPassesThrough(t *testing.T) {
	m := NewMatcher(nil)
	assert.Equal(t, []string{"Lada"}, m.BrandTerms(" Lada "))
}

func TestMatches_BrandInBrandField(t *testing.T) {
	m := NewMatcher(nil)
	l := models.Listing{Brand: "トヨタ", Model: "プリウス"}
	assert.True(t, m.Matches(l, map[string]string{"brand": "toyota"}))
}

func TestMatches_BrandInModelText(t *testing.T) {
	// Scraped titles often carry the manufacturer inside the model text.
	m := NewMatcher(nil)
	l := models.Listing{Brand: "", Model: "BMW X5 xDrive35d Mスポーツ"}
	assert.True(t, m.Matches(l, map[string]string{"brand": "bmw"}))
}

func TestMatches_CyrillicAlias(t *testing.T) {
	m := NewMatcher(nil)
	l := models.Listing{Brand: "Мерседес", Model: "E-класс"}
	assert.True(t, m.Matches(l, map[string]string{"brand": "mercedes"}))
}

func TestMatches_BrandMismatch(t *testing.T) {
	m := NewMatcher(nil)
	l := models.Listing{Brand: "Honda", Model: "Fit"}
	assert.False(t, m.Matches(l, map[string]string{"brand": "toyota"}))
}

func TestMatches_ModelSubstringCaseInsensitive(t *testing.T) {
	m := NewMatcher(nil)
	l := models.Listing{Brand: "Toyota", Model: "Prius S Touring Selection"}
	assert.True(t, m.Matches(l, map[string]string{"model": "prius"}))
	assert.False(t, m.Matches(l, map[string]string{"model": "corolla"}))
}

func TestMatches_EmptyFiltersMatchEverything(t *testing.T) {
	m := NewMatcher(nil)
	assert.True(t, m.Matches(models.Listing{Model: "anything"}, nil))
	assert.True(t, m.Matches(models.Listing{}, map[string]string{}))
}

func TestFilter_PreservesOrder(t *testing.T) {
	m := NewMatcher(nil)
	listings := []models.Listing{
		{Model: "BMW X5", URL: "a"},
		{Model: "Honda Fit", URL: "b"},
		{Model: "BMW 320i", URL: "c"},
	}

	matched := m.Filter(listings, map[string]string{"brand": "bmw"})
	assert.Len(t, matched, 2)
	assert.Equal(t, "a", matched[0].URL)
	assert.Equal(t, "c", matched[1].URL)
}

func TestFilter_NoMatchesReturnsEmpty(t *testing.T) {
	m := NewMatcher(nil)
	listings := []models.Listing{{Model: "Honda Fit"}}
	assert.Empty(t, m.Filter(listings, map[string]string{"brand": "audi"}))
}
