package crawler

import (
	"context"

	"sjsage522/harvester/internal/product"
	"sjsage522/harvester/internal/store"
)

// InsertResult is the outcome of Deduplicator.Accept
type InsertResult int

const (
	// Inserted means the record is now stored
	Inserted InsertResult = iota
	// Skipped means the link was already known or already stored
	Skipped
)

// Deduplicator holds the links already stored for one website. The set is
// loaded once per run; the store's unique link constraint backs it up.
type Deduplicator struct {
	store   store.Store
	website string
	known   map[string]struct{}
}

// LoadDeduplicator loads the known links of website
func LoadDeduplicator(ctx context.Context, st store.Store, website string) (*Deduplicator, error) {
	known, err := st.Links(ctx, website)
	if err != nil {
		return nil, err
	}
	return &Deduplicator{store: st, website: website, known: known}, nil
}

// IsNew reports whether link is not known yet
func (d *Deduplicator) IsNew(link string) bool {
	_, ok := d.known[link]
	return !ok
}

// Known returns how many links are known
func (d *Deduplicator) Known() int {
	return len(d.known)
}

// Accept inserts rec unless its link is known. A link rejected by the store
// as a duplicate is remembered and reported as Skipped.
func (d *Deduplicator) Accept(ctx context.Context, rec *product.Record) (InsertResult, error) {
	if !d.IsNew(rec.Link) {
		return Skipped, nil
	}

	ok, err := d.store.Insert(ctx, rec)
	if err != nil {
		return Skipped, err
	}
	d.known[rec.Link] = struct{}{}
	if !ok {
		return Skipped, nil
	}
	return Inserted, nil
}
