package models

// Listing is a raw record produced by page extraction. It exists only as a
// pipeline intermediate value; the upserter reconciles it into the cars table.
// URL is the natural key; every other field is best-effort and may be absent.
type Listing struct {
	Brand string  `json:"brand"`
	Model string  `json:"model"`
	Year  *int    `json:"year,omitempty"`
	Price *int    `json:"price,omitempty"`
	Color *string `json:"color,omitempty"`
	URL   string  `json:"url"`
}
