package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	numberRe = regexp.MustCompile(`[\d.]+`)
	yearRe   = regexp.MustCompile(`(\d{4})`)
	reiwaRe  = regexp.MustCompile(`令和(\d+)`)
	heiseiRe = regexp.MustCompile(`平成(\d+)`)
)

// NormalizeText collapses whitespace (including ideographic spaces) and strips
// control characters from scraped text.
func NormalizeText(s string) string {
	cleaned := strings.NewReplacer("　", " ", " ", " ").Replace(s)
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

// Truncate shortens s to at most maxBytes without splitting UTF-8 runes.
func Truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

// ParsePrice extracts a yen amount from listing price text. Values quoted in
// 万円 (10,000-yen units) are converted to yen.
func ParsePrice(text string) *int {
	if text == "" {
		return nil
	}
	match := numberRe.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return nil
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	if strings.Contains(text, "万") {
		value *= 10000
	}
	price := int(value)
	return &price
}

// ParseYear extracts a model year from listing text, handling both western
// four-digit years and Japanese era years (令和, 平成).
func ParseYear(text string) *int {
	if text == "" {
		return nil
	}
	if m := yearRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		return &year
	}
	if m := reiwaRe.FindStringSubmatch(text); m != nil {
		offset, _ := strconv.Atoi(m[1])
		year := 2018 + offset
		return &year
	}
	if m := heiseiRe.FindStringSubmatch(text); m != nil {
		offset, _ := strconv.Atoi(m[1])
		year := 1988 + offset
		return &year
	}
	return nil
}
