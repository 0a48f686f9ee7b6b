package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_KnownBrandUsesCatalogPage(t *testing.T) {
	r := NewSourceResolver("https://example.test/usedcar/", nil)

	source, match := r.Resolve(map[string]string{"brand": "Toyota", "model": "prius"})
	assert.Equal(t, "https://example.test/usedcar/bTO/", source)
	assert.Equal(t, map[string]string{"model": "prius"}, match)
}

func TestResolve_BrandKeyDroppedFromMatchFilters(t *testing.T) {
	r := NewSourceResolver("", nil)

	_, match := r.Resolve(map[string]string{"brand": "bmw"})
	assert.Empty(t, match)
}

func TestResolve_UnknownBrandFallsBackToGlobalIndex(t *testing.T) {
	r := NewSourceResolver("https://example.test/usedcar/", nil)

	filters := map[string]string{"brand": "lada", "model": "niva"}
	source, match := r.Resolve(filters)
	assert.Equal(t, "https://example.test/usedcar/", source)
	assert.Equal(t, filters, match)
}

func TestResolve_NoBrandUsesGlobalIndex(t *testing.T) {
	r := NewSourceResolver("https://example.test/usedcar/", nil)

	source, match := r.Resolve(map[string]string{"model": "prius"})
	assert.Equal(t, "https://example.test/usedcar/", source)
	assert.Equal(t, map[string]string{"model": "prius"}, match)
}

func TestPageURL_FirstPageIsBareIndex(t *testing.T) {
	assert.Equal(t, "https://example.test/usedcar/bTO/index.html",
		PageURL("https://example.test/usedcar/bTO/", 1))
}

func TestPageURL_LaterPagesAreNumbered(t *testing.T) {
	assert.Equal(t, "https://example.test/usedcar/index3.html",
		PageURL("https://example.test/usedcar", 3))
}
