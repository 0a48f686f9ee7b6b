package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"carsentry/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Cars ---

// ReconcileCar reconciles one listing against the cars table inside its own
// transaction. The row is locked for the comparison so concurrent workers
// cannot interleave partial writes; only non-null changed fields are
// overwritten, and updated_at moves only when something actually changed.
func (s *PostgresStore) ReconcileCar(ctx context.Context, l models.Listing) (ReconcileOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return OutcomeUnchanged, fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing models.Car
	err = tx.QueryRow(ctx,
		`SELECT id, brand, model, year, price, color FROM cars WHERE url = $1 FOR UPDATE`, l.URL,
	).Scan(&existing.ID, &existing.Brand, &existing.Model, &existing.Year, &existing.Price, &existing.Color)

	if errors.Is(err, pgx.ErrNoRows) {
		_, err = tx.Exec(ctx,
			`INSERT INTO cars (brand, model, year, price, color, url, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
			l.Brand, l.Model, l.Year, l.Price, l.Color, l.URL)
		if err != nil {
			if isDuplicateKeyError(err) {
				return OutcomeUnchanged, ErrDuplicateKey
			}
			return OutcomeUnchanged, fmt.Errorf("insert car: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return OutcomeUnchanged, fmt.Errorf("commit car insert: %w", err)
		}
		return OutcomeInserted, nil
	}
	if err != nil {
		return OutcomeUnchanged, fmt.Errorf("lookup car by url: %w", err)
	}

	sets := []string{}
	args := []any{}
	argIdx := 1

	addSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if l.Brand != "" && l.Brand != existing.Brand {
		addSet("brand", l.Brand)
	}
	if l.Model != "" && l.Model != existing.Model {
		addSet("model", l.Model)
	}
	if l.Year != nil && (existing.Year == nil || *existing.Year != *l.Year) {
		addSet("year", *l.Year)
	}
	if l.Price != nil && (existing.Price == nil || *existing.Price != *l.Price) {
		addSet("price", *l.Price)
	}
	if l.Color != nil && (existing.Color == nil || *existing.Color != *l.Color) {
		addSet("color", *l.Color)
	}

	if len(sets) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return OutcomeUnchanged, fmt.Errorf("commit car noop: %w", err)
		}
		return OutcomeUnchanged, nil
	}

	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE cars SET %s WHERE id = $%d", strings.Join(sets, ", "), argIdx)
	args = append(args, existing.ID)

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return OutcomeUnchanged, fmt.Errorf("update car: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return OutcomeUnchanged, fmt.Errorf("commit car update: %w", err)
	}
	return OutcomeUpdated, nil
}

func (s *PostgresStore) GetCarByURL(ctx context.Context, url string) (*models.Car, error) {
	var c models.Car
	err := s.pool.QueryRow(ctx,
		`SELECT id, brand, model, year, price, color, url, created_at, updated_at
		 FROM cars WHERE url = $1`, url,
	).Scan(&c.ID, &c.Brand, &c.Model, &c.Year, &c.Price, &c.Color, &c.URL, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get car by url: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) SearchCars(ctx context.Context, filter CarFilter) ([]*models.Car, int, error) {
	// Build WHERE clause dynamically
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if len(filter.BrandTerms) > 0 {
		brandConds := make([]string, 0, len(filter.BrandTerms))
		for _, term := range filter.BrandTerms {
			brandConds = append(brandConds,
				fmt.Sprintf("(brand ILIKE $%d OR model ILIKE $%d)", argIdx, argIdx))
			args = append(args, "%"+term+"%")
			argIdx++
		}
		conditions = append(conditions, "("+strings.Join(brandConds, " OR ")+")")
	}
	if filter.Model != "" {
		conditions = append(conditions, fmt.Sprintf("model ILIKE $%d", argIdx))
		args = append(args, "%"+filter.Model+"%")
		argIdx++
	}
	if filter.Color != "" {
		conditions = append(conditions, fmt.Sprintf("color ILIKE $%d", argIdx))
		args = append(args, "%"+filter.Color+"%")
		argIdx++
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIdx))
		args = append(args, *filter.MinPrice)
		argIdx++
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIdx))
		args = append(args, *filter.MaxPrice)
		argIdx++
	}
	if filter.MinYear != nil {
		conditions = append(conditions, fmt.Sprintf("year >= $%d", argIdx))
		args = append(args, *filter.MinYear)
		argIdx++
	}
	if filter.MaxYear != nil {
		conditions = append(conditions, fmt.Sprintf("year <= $%d", argIdx))
		args = append(args, *filter.MaxYear)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	// Count query
	var total int
	countQuery := "SELECT COUNT(*) FROM cars WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cars: %w", err)
	}

	// Normalize pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	// Data query
	dataQuery := fmt.Sprintf(
		`SELECT id, brand, model, year, price, color, url, created_at, updated_at
		 FROM cars WHERE %s ORDER BY updated_at DESC, id LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search cars: %w", err)
	}
	defer rows.Close()

	var cars []*models.Car
	for rows.Next() {
		var c models.Car
		if err := rows.Scan(&c.ID, &c.Brand, &c.Model, &c.Year, &c.Price, &c.Color,
			&c.URL, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan car: %w", err)
		}
		cars = append(cars, &c)
	}
	return cars, total, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// isDuplicateKeyError reports whether err is a Postgres unique violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
