package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"carsentry/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ReconcileOutcome describes what a single-row reconciliation did.
type ReconcileOutcome string

const (
	OutcomeInserted  ReconcileOutcome = "inserted"
	OutcomeUpdated   ReconcileOutcome = "updated"
	OutcomeUnchanged ReconcileOutcome = "unchanged"
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// ReconcileCar inserts the listing or updates changed fields of the
	// existing row, inside a transaction scoped to that single row.
	ReconcileCar(ctx context.Context, l models.Listing) (ReconcileOutcome, error)
	GetCarByURL(ctx context.Context, url string) (*models.Car, error)
	SearchCars(ctx context.Context, filter CarFilter) ([]*models.Car, int, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// CarFilter narrows a car search. BrandTerms is the alias-expanded brand
// filter: a car matches when any term appears in its brand or model text.
type CarFilter struct {
	BrandTerms []string
	Model      string
	Color      string
	MinPrice   *int
	MaxPrice   *int
	MinYear    *int
	MaxYear    *int
	Page       int
	Limit      int
}
