package store

import (
	"context"
	"fmt"

	"sjsage522/harvester/internal/product"
	herrors "sjsage522/harvester/pkg/errors"
)

const recordColumns = `id, product_name, price, rating, category, website, product_link, page, quantity, last_updated`

// rows is the cursor shape shared by database/sql and pgx
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// queryFunc runs query and hands the open cursor to each. The cursor is
// closed when each returns.
type queryFunc func(ctx context.Context, each func(rows) error, query string, args ...any) error

func scanRecords(r rows) ([]product.Record, error) {
	var out []product.Record
	for r.Next() {
		var rec product.Record
		if err := r.Scan(&rec.ID, &rec.Name, &rec.Price, &rec.Rating, &rec.Category,
			&rec.Website, &rec.Link, &rec.Page, &rec.Quantity, &rec.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, r.Err()
}

func scanLinks(r rows, into map[string]struct{}) error {
	for r.Next() {
		var link string
		if err := r.Scan(&link); err != nil {
			return err
		}
		into[link] = struct{}{}
	}
	return r.Err()
}

// loadLinks reads every link of a website. ph is the driver's placeholder
// for argument n.
func loadLinks(ctx context.Context, query queryFunc, ph func(int) string, website string) (map[string]struct{}, error) {
	links := make(map[string]struct{})
	err := query(ctx, func(r rows) error { return scanLinks(r, links) },
		`SELECT product_link FROM products WHERE website = `+ph(1), website)
	if err != nil {
		return nil, herrors.NewStoreConnection(website, "failed to load links", err)
	}
	return links, nil
}

func listProducts(ctx context.Context, query queryFunc, ph func(int) string, q Query) ([]product.Record, error) {
	sql := fmt.Sprintf(`SELECT %s FROM products
		WHERE (CAST(%s AS TEXT) = '' OR website = %s) AND (CAST(%s AS TEXT) = '' OR LOWER(product_name) LIKE '%%' || LOWER(%s) || '%%')
		ORDER BY id`, recordColumns, ph(1), ph(1), ph(2), ph(2))
	args := []any{q.Website, q.Search}
	if q.Limit > 0 {
		sql += ` LIMIT ` + ph(3)
		args = append(args, q.Limit)
	}

	var out []product.Record
	err := query(ctx, func(r rows) error {
		var err error
		out, err = scanRecords(r)
		return err
	}, sql, args...)
	if err != nil {
		return nil, herrors.NewStore(q.Website, "failed to list products", err)
	}
	return out, nil
}

func collectStats(ctx context.Context, query queryFunc, ph func(int) string) (Stats, error) {
	stats := Stats{
		ByWebsite: make(map[string]int),
		Samples:   make(map[string]product.Record),
	}

	err := query(ctx, func(r rows) error {
		for r.Next() {
			var website string
			var n int
			if err := r.Scan(&website, &n); err != nil {
				return err
			}
			stats.ByWebsite[website] = n
			stats.Total += n
		}
		return r.Err()
	}, `SELECT website, COUNT(*) FROM products GROUP BY website`)
	if err != nil {
		return stats, herrors.NewStore("", "failed to count products", err)
	}

	err = query(ctx, func(r rows) error {
		if r.Next() {
			if err := r.Scan(&stats.WithQuantity); err != nil {
				return err
			}
		}
		return r.Err()
	}, `SELECT COUNT(*) FROM products WHERE quantity <> `+ph(1), product.QuantityUnknown)
	if err != nil {
		return stats, herrors.NewStore("", "failed to count quantities", err)
	}

	for website := range stats.ByWebsite {
		sample, err := listSample(ctx, query, ph, website)
		if err != nil {
			return stats, err
		}
		if sample != nil {
			stats.Samples[website] = *sample
		}
	}
	return stats, nil
}

func listSample(ctx context.Context, query queryFunc, ph func(int) string, website string) (*product.Record, error) {
	recs, err := listProducts(ctx, query, ph, Query{Website: website, Limit: 1})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}
