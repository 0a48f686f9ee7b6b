package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"carsentry/pkg/models"
)

const (
	listingSelector         = "div.casetPanel, div.cas_detail, article.listView"
	fallbackListingSelector = "[class*='cassetteWrap'], [class*='cassette']"
	titleSelector           = "h3 a, .cas_detail_ttl a, .casetPanel_head a, a[class*='title']"
	priceSelector           = ".cas_detail_price, .casetPanel_price, [class*='price']"
	yearSelector            = ".cas_detail_year, .casetPanel_spec, [class*='year']"
	specSelector            = ".cas_detail_spec li, .casetPanel_specList li, [class*='spec'] li"

	maxBrandLen = 100
	maxModelLen = 2000
	maxColorLen = 100
)

// StaticExtractor is the fast extraction strategy: a plain goquery parse over
// static HTML. The selector set targets the carsensor listing markup variants
// and is deliberately broad because the site reshuffles class names.
type StaticExtractor struct {
	base *url.URL
}

// NewStaticExtractor creates a StaticExtractor that resolves relative listing
// links against baseURL. Passing the listing-index URL is fine: hrefs on the
// index pages are root-relative, so they resolve against the host, not the
// index path.
func NewStaticExtractor(baseURL string) *StaticExtractor {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}
	return &StaticExtractor{base: base}
}

func (e *StaticExtractor) Extract(html []byte) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing listing page: %w", err)
	}

	items := doc.Find(listingSelector)
	if items.Length() == 0 {
		items = doc.Find(fallbackListingSelector)
	}

	listings := []models.Listing{}
	items.Each(func(_ int, item *goquery.Selection) {
		title := item.Find(titleSelector).First()
		if title.Length() == 0 {
			return
		}

		link, _ := title.Attr("href")
		link = strings.TrimSpace(link)
		if link == "" {
			return
		}
		link = e.resolveLink(link)

		brand, model := splitTitle(NormalizeText(title.Text()))

		listings = append(listings, models.Listing{
			Brand: Truncate(brand, maxBrandLen),
			Model: Truncate(model, maxModelLen),
			Year:  ParseYear(NormalizeText(item.Find(yearSelector).First().Text())),
			Price: ParsePrice(NormalizeText(item.Find(priceSelector).First().Text())),
			Color: extractColor(item),
			URL:   link,
		})
	})

	return listings, nil
}

// resolveLink makes a listing href absolute. The href is the row's natural
// key in the car store, so resolution must not duplicate path segments from
// the base URL. Unparseable hrefs pass through untouched.
func (e *StaticExtractor) resolveLink(link string) string {
	if e.base == nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return e.base.ResolveReference(ref).String()
}

// splitTitle separates a listing title of the form "Brand Model Trim" into
// its brand and model parts.
func splitTitle(title string) (brand, model string) {
	parts := strings.SplitN(title, " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return title, ""
}

// extractColor looks for a color spec entry; carsensor labels them with 色 or
// カラー. A dedicated color element is the fallback.
func extractColor(item *goquery.Selection) *string {
	var color string
	item.Find(specSelector).EachWithBreak(func(_ int, spec *goquery.Selection) bool {
		text := NormalizeText(spec.Text())
		if strings.Contains(text, "色") || strings.Contains(text, "カラー") {
			replacer := strings.NewReplacer("色", "", "カラー", "")
			color = strings.TrimSpace(replacer.Replace(text))
			return false
		}
		return true
	})
	if color == "" {
		color = NormalizeText(item.Find("[class*='color']").First().Text())
	}
	if color == "" {
		return nil
	}
	color = Truncate(color, maxColorLen)
	return &color
}

var _ Extractor = (*StaticExtractor)(nil)
