package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"sjsage522/harvester/internal/product"
	"sjsage522/harvester/logger"
	herrors "sjsage522/harvester/pkg/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS products (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	product_name TEXT NOT NULL,
	price        TEXT NOT NULL,
	rating       TEXT NOT NULL,
	category     TEXT NOT NULL,
	website      TEXT NOT NULL,
	product_link TEXT NOT NULL UNIQUE,
	page         INTEGER NOT NULL,
	quantity     TEXT NOT NULL,
	last_updated TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_website ON products(website);
`

// SQLiteStore is the embedded record store
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, herrors.NewStoreConnection("", "failed to create database directory", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, herrors.NewStoreConnection("", "failed to open sqlite", err)
	}
	// One writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 10000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, herrors.NewStoreConnection("", "failed to apply "+pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.ForStore().Debug().Str("path", path).Msg("SQLite store opened")
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return herrors.NewStoreConnection("", "failed to create schema", err)
	}
	return nil
}

func sqlitePlaceholder(n int) string { return "?" + strconv.Itoa(n) }

func (s *SQLiteStore) query(ctx context.Context, each func(rows) error, query string, args ...any) error {
	r, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer r.Close()
	return each(r)
}

// Links returns every product link stored for a website
func (s *SQLiteStore) Links(ctx context.Context, website string) (map[string]struct{}, error) {
	return loadLinks(ctx, s.query, sqlitePlaceholder, website)
}

// Insert stores rec unless its link already exists
func (s *SQLiteStore) Insert(ctx context.Context, rec *product.Record) (bool, error) {
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now().UTC()
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products
			(product_name, price, rating, category, website, product_link, page, quantity, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (product_link) DO NOTHING
		RETURNING id`,
		rec.Name, rec.Price, rec.Rating, rec.Category, rec.Website, rec.Link, rec.Page, rec.Quantity, rec.LastUpdated,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, herrors.NewStore(rec.Website, "failed to insert "+rec.Link, err)
	}

	rec.ID = id
	return true, nil
}

// UpdatePrice refreshes the price and timestamp of one record
func (s *SQLiteStore) UpdatePrice(ctx context.Context, id int64, price string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET price = ?, last_updated = ? WHERE id = ?`,
		price, time.Now().UTC(), id)
	if err != nil {
		return herrors.NewStore("", fmt.Sprintf("failed to update price of %d", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return herrors.NewStore("", "failed to read affected rows", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Products lists records matching q in insertion order
func (s *SQLiteStore) Products(ctx context.Context, q Query) ([]product.Record, error) {
	return listProducts(ctx, s.query, sqlitePlaceholder, q)
}

// Stats aggregates the stored records
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	return collectStats(ctx, s.query, sqlitePlaceholder)
}

// NameQuality counts records by the state of their name
func (s *SQLiteStore) NameQuality(ctx context.Context) (NameQuality, error) {
	var nq NameQuality
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN TRIM(product_name) = '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN product_name = ? THEN 1 ELSE 0 END), 0)
		FROM products`, product.UnknownName).Scan(&nq.Total, &nq.Blank, &nq.Unknown)
	if err != nil {
		return nq, herrors.NewStore("", "failed to count names", err)
	}
	nq.Valid = nq.Total - nq.Blank - nq.Unknown
	return nq, nil
}

// Clear deletes every record
func (s *SQLiteStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, herrors.NewStore("", "failed to clear products", err)
	}
	return res.RowsAffected()
}

// Ping checks the connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return herrors.NewStoreConnection("", "ping failed", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
