package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"carsentry/internal/api/response"
	"carsentry/internal/cache"
	"carsentry/internal/scrape"
	"carsentry/internal/store"
	"carsentry/pkg/models"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	searchCacheTTL     = 60 * time.Second
)

// CarSearcher defines the store interface the search handler depends on.
type CarSearcher interface {
	SearchCars(ctx context.Context, filter store.CarFilter) ([]*models.Car, int, error)
}

// NewSearchCarsHandler returns an http.HandlerFunc for GET /api/v1/cars.
// Brand filters are alias-expanded through the matcher so a query for
// "bmw" also matches rows stored under БМВ or ビーエムダブリュー.
func NewSearchCarsHandler(st CarSearcher, c cache.Cache, matcher *scrape.Matcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := store.CarFilter{
			Model: q.Get("model"),
			Color: q.Get("color"),
			Page:  1,
			Limit: defaultSearchLimit,
		}

		if brand := q.Get("brand"); brand != "" {
			filter.BrandTerms = matcher.BrandTerms(brand)
		}

		for name, dst := range map[string]**int{
			"min_price": &filter.MinPrice,
			"max_price": &filter.MaxPrice,
			"min_year":  &filter.MinYear,
			"max_year":  &filter.MaxYear,
		} {
			raw := q.Get(name)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					name+" must be a non-negative integer", nil)
				return
			}
			*dst = &n
		}

		if raw := q.Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"page must be a positive integer", nil)
				return
			}
			filter.Page = n
		}
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			if n > maxSearchLimit {
				n = maxSearchLimit
			}
			filter.Limit = n
		}

		key := cache.CarSearchKey(searchFilterHash(filter))
		if cached, ok, err := c.Get(r.Context(), key); err == nil && ok {
			var hit cachedSearch
			if json.Unmarshal(cached, &hit) == nil {
				respondSearch(w, hit.Cars, hit.Total, filter)
				return
			}
		}

		cars, total, err := st.SearchCars(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to search cars", nil)
			return
		}

		if body, err := json.Marshal(cachedSearch{Cars: cars, Total: total}); err == nil {
			_ = c.Set(r.Context(), key, body, searchCacheTTL)
		}

		respondSearch(w, cars, total, filter)
	}
}

type cachedSearch struct {
	Cars  []*models.Car `json:"cars"`
	Total int           `json:"total"`
}

func respondSearch(w http.ResponseWriter, cars []*models.Car, total int, filter store.CarFilter) {
	if cars == nil {
		cars = []*models.Car{}
	}
	response.Collection(w, cars, response.PaginationMeta{
		Page:    filter.Page,
		Limit:   filter.Limit,
		Total:   total,
		HasNext: filter.Page*filter.Limit < total,
	})
}

func searchFilterHash(f store.CarFilter) string {
	h := sha256.New()
	fmt.Fprintf(h, "%v|%s|%s|%s|%s|%s|%s|%d|%d",
		f.BrandTerms, f.Model, f.Color,
		intOrDash(f.MinPrice), intOrDash(f.MaxPrice),
		intOrDash(f.MinYear), intOrDash(f.MaxYear),
		f.Page, f.Limit)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func intOrDash(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}
