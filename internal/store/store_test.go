package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"carsentry/internal/store"
	"carsentry/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("carsentry_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

// --- Car Reconciliation Tests ---

func TestReconcileCar_InsertsNewListing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	l := models.Listing{
		Brand: "トヨタ",
		Model: "プリウス S",
		Year:  intPtr(2019),
		Price: intPtr(1280000),
		Color: strPtr("パール"),
		URL:   "https://example.test/detail/1",
	}

	outcome, err := s.ReconcileCar(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeInserted, outcome)

	car, err := s.GetCarByURL(ctx, l.URL)
	require.NoError(t, err)
	assert.Equal(t, "トヨタ", car.Brand)
	assert.Equal(t, "プリウス S", car.Model)
	require.NotNil(t, car.Price)
	assert.Equal(t, 1280000, *car.Price)
}

func TestReconcileCar_UnchangedListingIsNoOp(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	l := models.Listing{
		Brand: "Honda",
		Model: "Fit",
		Price: intPtr(899000),
		URL:   "https://example.test/detail/2",
	}

	outcome, err := s.ReconcileCar(ctx, l)
	require.NoError(t, err)
	require.Equal(t, store.OutcomeInserted, outcome)

	before, err := s.GetCarByURL(ctx, l.URL)
	require.NoError(t, err)

	outcome, err = s.ReconcileCar(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeUnchanged, outcome)

	after, err := s.GetCarByURL(ctx, l.URL)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestReconcileCar_UpdatesChangedFieldsOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	url := "https://example.test/detail/3"
	_, err := s.ReconcileCar(ctx, models.Listing{
		Brand: "BMW",
		Model: "X5",
		Price: intPtr(3980000),
		Year:  intPtr(2021),
		URL:   url,
	})
	require.NoError(t, err)

	// Price drop; year re-scraped identically
	outcome, err := s.ReconcileCar(ctx, models.Listing{
		Brand: "BMW",
		Model: "X5",
		Price: intPtr(3780000),
		Year:  intPtr(2021),
		URL:   url,
	})
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeUpdated, outcome)

	car, err := s.GetCarByURL(ctx, url)
	require.NoError(t, err)
	require.NotNil(t, car.Price)
	assert.Equal(t, 3780000, *car.Price)
	require.NotNil(t, car.Year)
	assert.Equal(t, 2021, *car.Year)
	assert.True(t, car.UpdatedAt.After(car.CreatedAt))
}

func TestReconcileCar_NullFieldsDoNotOverwrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	url := "https://example.test/detail/4"
	_, err := s.ReconcileCar(ctx, models.Listing{
		Brand: "Mazda",
		Model: "CX-5",
		Year:  intPtr(2020),
		Color: strPtr("赤"),
		URL:   url,
	})
	require.NoError(t, err)

	// Re-scrape that failed to parse year and color
	outcome, err := s.ReconcileCar(ctx, models.Listing{
		Brand: "Mazda",
		Model: "CX-5",
		URL:   url,
	})
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeUnchanged, outcome)

	car, err := s.GetCarByURL(ctx, url)
	require.NoError(t, err)
	require.NotNil(t, car.Year)
	assert.Equal(t, 2020, *car.Year)
	require.NotNil(t, car.Color)
	assert.Equal(t, "赤", *car.Color)
}

func TestGetCarByURL_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetCarByURL(context.Background(), "https://example.test/missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Car Search Tests ---

func seedCars(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	listings := []models.Listing{
		{Brand: "トヨタ", Model: "プリウス", Price: intPtr(1200000), Year: intPtr(2018), URL: "https://example.test/s/1"},
		{Brand: "БМВ", Model: "X5", Price: intPtr(3900000), Year: intPtr(2021), URL: "https://example.test/s/2"},
		{Brand: "", Model: "BMW 320i Mスポーツ", Price: intPtr(2500000), Year: intPtr(2019), URL: "https://example.test/s/3"},
		{Brand: "Honda", Model: "Fit", Price: intPtr(900000), Year: intPtr(2017), Color: strPtr("青"), URL: "https://example.test/s/4"},
	}
	for _, l := range listings {
		_, err := s.ReconcileCar(ctx, l)
		require.NoError(t, err)
	}
}

func TestSearchCars_BrandTermsMatchBrandOrModel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	seedCars(t, s)

	cars, total, err := s.SearchCars(context.Background(), store.CarFilter{
		BrandTerms: []string{"BMW", "БМВ"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, cars, 2)
}

func TestSearchCars_PriceRange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	seedCars(t, s)

	cars, total, err := s.SearchCars(context.Background(), store.CarFilter{
		MinPrice: intPtr(1000000),
		MaxPrice: intPtr(3000000),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, c := range cars {
		require.NotNil(t, c.Price)
		assert.GreaterOrEqual(t, *c.Price, 1000000)
		assert.LessOrEqual(t, *c.Price, 3000000)
	}
}

func TestSearchCars_Pagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	seedCars(t, s)

	page1, total, err := s.SearchCars(context.Background(), store.CarFilter{Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, page1, 3)

	page2, total, err := s.SearchCars(context.Background(), store.CarFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, page2, 1)
}

func TestSearchCars_NoFiltersReturnsEverything(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	seedCars(t, s)

	_, total, err := s.SearchCars(context.Background(), store.CarFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

// --- API Key Tests ---

func newTestKey(name, prefix string) *models.APIKey {
	now := time.Now().UTC()
	return &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   "$2a$10$fakehashfortesting000000000000000000000000000000000",
		KeyPrefix: prefix,
		Scopes:    []string{"read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetAPIKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	key := newTestKey("bot", "cs_abc12")
	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeyByPrefix(ctx, "cs_abc12")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, []string{"read"}, keys[0].Scopes)
}

func TestUpdateAPIKeyLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	key := newTestKey("bot", "cs_used1")
	require.NoError(t, s.CreateAPIKey(ctx, key))
	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	keys, err := s.GetAPIKeyByPrefix(ctx, "cs_used1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

func TestRevokeAPIKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	key := newTestKey("bot", "cs_gone1")
	require.NoError(t, s.CreateAPIKey(ctx, key))
	require.NoError(t, s.RevokeAPIKey(ctx, key.ID))

	keys, err := s.GetAPIKeyByPrefix(ctx, "cs_gone1")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Revoking twice reports not found
	assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID), store.ErrNotFound)
}

func TestListAPIKeys_ExcludesRevoked(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	keep := newTestKey("keep", "cs_keep1")
	drop := newTestKey("drop", "cs_drop1")
	require.NoError(t, s.CreateAPIKey(ctx, keep))
	require.NoError(t, s.CreateAPIKey(ctx, drop))
	require.NoError(t, s.RevokeAPIKey(ctx, drop.ID))

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "keep", keys[0].Name)
}
