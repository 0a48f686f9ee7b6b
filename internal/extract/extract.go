// Package extract turns fetched listing pages into raw listing records.
package extract

import (
	"context"

	"carsentry/pkg/models"
)

// Extractor produces zero or more raw listings from page HTML. "No listings
// found" is an empty result, not an error; an error means the page itself
// could not be parsed.
type Extractor interface {
	Extract(html []byte) ([]models.Listing, error)
}

// Renderer loads a page through a scripted browser and returns the rendered
// DOM, for sources that only populate their listings from JavaScript.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}
