// Package store persists product records. The products table enforces a
// unique product_link so a stale dedup set degrades to a skipped insert.
package store

import (
	"context"
	"errors"

	"sjsage522/harvester/config"
	"sjsage522/harvester/internal/product"
	herrors "sjsage522/harvester/pkg/errors"
)

// ErrNotFound is returned when a record id does not exist
var ErrNotFound = errors.New("store: record not found")

// Store is the record store used by harvest runs and the read API
type Store interface {
	// Links returns every product link stored for a website
	Links(ctx context.Context, website string) (map[string]struct{}, error)

	// Insert stores rec and sets its ID. It returns false without error when
	// the link is already stored.
	Insert(ctx context.Context, rec *product.Record) (bool, error)

	// UpdatePrice refreshes the price and timestamp of one record
	UpdatePrice(ctx context.Context, id int64, price string) error

	// Products lists records matching q in insertion order
	Products(ctx context.Context, q Query) ([]product.Record, error)

	// Stats aggregates the stored records
	Stats(ctx context.Context) (Stats, error)

	// NameQuality counts records by the state of their name
	NameQuality(ctx context.Context) (NameQuality, error)

	// Clear deletes every record and returns how many were removed
	Clear(ctx context.Context) (int64, error)

	// Ping checks the connection
	Ping(ctx context.Context) error

	// Close releases the connection
	Close() error
}

// Query filters Products. Zero values match everything.
type Query struct {
	Website string
	Search  string
	Limit   int
}

// Stats is the aggregate view of the store
type Stats struct {
	Total        int                       `json:"total"`
	ByWebsite    map[string]int            `json:"by_website"`
	WithQuantity int                       `json:"with_quantity"`
	Samples      map[string]product.Record `json:"samples"`
}

// NameQuality counts records by name state
type NameQuality struct {
	Total   int `json:"total"`
	Blank   int `json:"blank"`
	Unknown int `json:"unknown"`
	Valid   int `json:"valid"`
}

// Open opens the store selected by cfg
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	case config.StoreSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return nil, herrors.NewConfiguration("unknown store driver "+cfg.StoreDriver, nil)
	}
}
