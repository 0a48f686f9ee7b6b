// Package scrape implements the on-demand scrape orchestration core: job
// submission with signature deduplication, the bounded-concurrency fetch
// pipeline with its rendering fallback, target matching with adaptive
// expansion, and idempotent reconciliation into the car store.
package scrape

import (
	"fmt"
	"strconv"
	"strings"
)

// GlobalSignature is the sentinel signature of an unscoped refresh.
const GlobalSignature = "global"

// signatureKeys is the fixed ordered subset of filter keys that contribute to
// a job signature. Keys outside this list never affect deduplication.
var signatureKeys = [...]string{
	"brand",
	"model",
	"color",
	"min_price",
	"max_price",
	"min_year",
	"max_year",
}

// Signature derives the canonical deduplication key for a filter set. Values
// are trimmed and lower-cased; empty values are omitted. Two filter maps that
// normalize to the same signature are considered the same request.
func Signature(filters map[string]string) string {
	var parts []string
	for _, key := range signatureKeys {
		normalized := strings.ToLower(strings.TrimSpace(filters[key]))
		if normalized == "" {
			continue
		}
		parts = append(parts, key+"="+normalized)
	}
	if len(parts) == 0 {
		return GlobalSignature
	}
	return strings.Join(parts, "|")
}

// NormalizeFilters flattens a decoded JSON filter map into trimmed strings.
// JSON numbers arrive as float64; they are formatted without an exponent so
// that {"max_price": 1000000} and {"max_price": "1000000"} normalize alike.
func NormalizeFilters(raw map[string]any) map[string]string {
	filters := make(map[string]string, len(raw))
	for key, value := range raw {
		var s string
		switch v := value.(type) {
		case nil:
			continue
		case string:
			s = strings.TrimSpace(v)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(v)
		default:
			s = strings.TrimSpace(fmt.Sprint(v))
		}
		if s == "" {
			continue
		}
		filters[key] = s
	}
	return filters
}
