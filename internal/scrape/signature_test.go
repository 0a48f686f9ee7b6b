package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignature_EmptyFiltersIsGlobal(t *testing.T) {
	assert.Equal(t, GlobalSignature, Signature(nil))
	assert.Equal(t, GlobalSignature, Signature(map[string]string{}))
}

func TestSignature_BlankValuesAreGlobal(t *testing.T) {
	sig := Signature(map[string]string{"brand": "   ", "model": ""})
	assert.Equal(t, GlobalSignature, sig)
}

func TestSignature_FixedKeyOrder(t *testing.T) {
	sig := Signature(map[string]string{
		"max_price": "1000000",
		"brand":     "BMW",
		"min_year":  "2015",
	})
	assert.Equal(t, "brand=bmw|max_price=1000000|min_year=2015", sig)
}

func TestSignature_TrimAndLowercase(t *testing.T) {
	a := Signature(map[string]string{"brand": "  BMW ", "model": "X5"})
	b := Signature(map[string]string{"brand": "bmw", "model": " x5 "})
	assert.Equal(t, a, b)
}

func TestSignature_UnknownKeysIgnored(t *testing.T) {
	a := Signature(map[string]string{"brand": "toyota"})
	b := Signature(map[string]string{"brand": "toyota", "page_size": "50"})
	assert.Equal(t, a, b)
}

func TestNormalizeFilters_NumbersWithoutExponent(t *testing.T) {
	filters := NormalizeFilters(map[string]any{
		"max_price": float64(1000000),
		"min_year":  float64(2015),
	})
	assert.Equal(t, "1000000", filters["max_price"])
	assert.Equal(t, "2015", filters["min_year"])
}

func TestNormalizeFilters_DropsNilAndEmpty(t *testing.T) {
	filters := NormalizeFilters(map[string]any{
		"brand": " BMW ",
		"model": "",
		"color": nil,
	})
	assert.Equal(t, map[string]string{"brand": "BMW"}, filters)
}

func TestNormalizeFilters_StringAndNumberAgree(t *testing.T) {
	a := NormalizeFilters(map[string]any{"max_price": "1000000"})
	b := NormalizeFilters(map[string]any{"max_price": float64(1000000)})
	assert.Equal(t, Signature(a), Signature(b))
}
