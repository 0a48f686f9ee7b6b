// Package models contains shared data models used across the carsentry codebase.
package models

import "time"

// Car is a persisted listing keyed by its source URL. Brand and model are
// always present; year, price, and color are best-effort extraction results.
type Car struct {
	ID        int64     `db:"id"         json:"id"`
	Brand     string    `db:"brand"      json:"brand"`
	Model     string    `db:"model"      json:"model"`
	Year      *int      `db:"year"       json:"year,omitempty"`
	Price     *int      `db:"price"      json:"price,omitempty"`
	Color     *string   `db:"color"      json:"color,omitempty"`
	URL       string    `db:"url"        json:"url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
