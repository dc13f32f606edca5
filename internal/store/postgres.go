package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sjsage522/harvester/internal/product"
	"sjsage522/harvester/logger"
	herrors "sjsage522/harvester/pkg/errors"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
	id           BIGSERIAL PRIMARY KEY,
	product_name TEXT NOT NULL,
	price        TEXT NOT NULL,
	rating       TEXT NOT NULL,
	category     TEXT NOT NULL,
	website      TEXT NOT NULL,
	product_link TEXT NOT NULL UNIQUE,
	page         INTEGER NOT NULL,
	quantity     TEXT NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_products_website ON products(website);
`

// PostgresStore is the server-backed record store
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates the schema if needed
func NewPostgresStore(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, herrors.NewConfiguration("failed to parse DATABASE_URL", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, herrors.NewStoreConnection("", "failed to connect to postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, herrors.NewStoreConnection("", "failed to reach postgres", err)
	}

	s := &PostgresStore{pool: pool}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, herrors.NewStoreConnection("", "failed to create schema", err)
	}

	logger.ForStore().Debug().Int("max_conns", maxConns).Msg("Postgres store opened")
	return s, nil
}

func postgresPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func (s *PostgresStore) query(ctx context.Context, each func(rows) error, query string, args ...any) error {
	r, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer r.Close()
	return each(r)
}

// Links returns every product link stored for a website
func (s *PostgresStore) Links(ctx context.Context, website string) (map[string]struct{}, error) {
	return loadLinks(ctx, s.query, postgresPlaceholder, website)
}

// Insert stores rec unless its link already exists
func (s *PostgresStore) Insert(ctx context.Context, rec *product.Record) (bool, error) {
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now().UTC()
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products
			(product_name, price, rating, category, website, product_link, page, quantity, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (product_link) DO NOTHING
		RETURNING id`,
		rec.Name, rec.Price, rec.Rating, rec.Category, rec.Website, rec.Link, rec.Page, rec.Quantity, rec.LastUpdated,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, herrors.NewStore(rec.Website, "failed to insert "+rec.Link, err)
	}

	rec.ID = id
	return true, nil
}

// UpdatePrice refreshes the price and timestamp of one record
func (s *PostgresStore) UpdatePrice(ctx context.Context, id int64, price string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET price = $1, last_updated = now() WHERE id = $2`, price, id)
	if err != nil {
		return herrors.NewStore("", fmt.Sprintf("failed to update price of %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Products lists records matching q in insertion order
func (s *PostgresStore) Products(ctx context.Context, q Query) ([]product.Record, error) {
	return listProducts(ctx, s.query, postgresPlaceholder, q)
}

// Stats aggregates the stored records
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	return collectStats(ctx, s.query, postgresPlaceholder)
}

// NameQuality counts records by the state of their name
func (s *PostgresStore) NameQuality(ctx context.Context) (NameQuality, error) {
	var nq NameQuality
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE TRIM(product_name) = ''),
			COUNT(*) FILTER (WHERE product_name = $1)
		FROM products`, product.UnknownName).Scan(&nq.Total, &nq.Blank, &nq.Unknown)
	if err != nil {
		return nq, herrors.NewStore("", "failed to count names", err)
	}
	nq.Valid = nq.Total - nq.Blank - nq.Unknown
	return nq, nil
}

// Clear deletes every record
func (s *PostgresStore) Clear(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, herrors.NewStore("", "failed to clear products", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks the connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return herrors.NewStoreConnection("", "ping failed", err)
	}
	return nil
}

// Close closes the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
