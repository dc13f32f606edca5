package crawler

import (
	"strings"

	"sjsage522/harvester/internal/product"
	"sjsage522/harvester/internal/quantity"
	"sjsage522/harvester/internal/site"
)

// Controller is the live/demo state of one harvest run. It starts in demo
// when the site is not reachable and never leaves demo once there.
type Controller struct {
	mode      Mode
	reason    Reason
	escalated bool
}

// NewController creates the state for a run. reason is ignored when the
// run starts live.
func NewController(live bool, reason Reason) *Controller {
	if live {
		return &Controller{mode: ModeLive}
	}
	return &Controller{mode: ModeDemo, reason: reason}
}

// Live reports whether the run is still on the live path
func (c *Controller) Live() bool { return c.mode == ModeLive }

// Mode returns the current mode
func (c *Controller) Mode() Mode { return c.mode }

// Reason returns why the run is in demo mode
func (c *Controller) Reason() Reason { return c.reason }

// Escalated reports whether the run switched from live to demo
func (c *Controller) Escalated() bool { return c.escalated }

// Escalate moves a live run to demo. It reports false when the run was
// already in demo.
func (c *Controller) Escalate(reason Reason) bool {
	if c.mode == ModeDemo {
		return false
	}
	c.mode = ModeDemo
	c.reason = reason
	c.escalated = true
	return true
}

// demoRecords shapes a site's demo dataset into records for one category,
// normalized exactly like extracted records
func demoRecords(entries []site.DemoEntry, website, category string) []product.Record {
	out := make([]product.Record, 0, len(entries))
	for _, e := range entries {
		link := strings.TrimSpace(e.Link)
		if link == "" {
			continue
		}
		name := found(e.Name).Or(product.UnknownName)
		out = append(out, product.Record{
			Name:     name,
			Price:    found(e.Price).Or(product.PriceUnavailable),
			Rating:   found(e.Rating).Or(product.NoRating),
			Category: category,
			Website:  website,
			Link:     link,
			Page:     1,
			Quantity: quantity.Normalize(name),
		})
	}
	return out
}
