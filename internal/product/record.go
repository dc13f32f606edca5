// Package product holds the normalized record every harvest path produces.
package product

import "time"

// Sentinels written in place of fields that could not be determined.
const (
	UnknownName      = "Unknown Product"
	PriceUnavailable = "Price not available"
	NoRating         = "No Rating"
	QuantityUnknown  = "Not specified"
)

// Record is one harvested product listing. Link is the dedup key and is
// unique across all sites.
type Record struct {
	ID          int64     `json:"id,omitempty"`
	Name        string    `json:"product_name"`
	Price       string    `json:"price"`
	Rating      string    `json:"rating"`
	Category    string    `json:"category"`
	Website     string    `json:"website"`
	Link        string    `json:"product_link"`
	Page        int       `json:"page"`
	Quantity    string    `json:"quantity"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}
