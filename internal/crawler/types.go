package crawler

import (
	"context"

	"sjsage522/harvester/internal/site"
)

// Mode is the state of a harvest run
type Mode string

const (
	// ModeLive harvests by rendering the real site
	ModeLive Mode = "live"
	// ModeDemo replays the site's canned dataset
	ModeDemo Mode = "demo"
)

// Reason names what moved a run into demo mode
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonUnreachable   Reason = "site unreachable"
	ReasonNoRenderer    Reason = "no renderer"
	ReasonRenderFailure Reason = "render failure"
	ReasonRateLimited   Reason = "rate limited"
	ReasonNoContainers  Reason = "no product containers"
)

// Result reports one harvest run. Mode is empty when the run failed before
// choosing a path, e.g. when the store could not be read.
type Result struct {
	RunID      string   `json:"run_id"`
	Site       string   `json:"site"`
	Categories []string `json:"categories"`
	Added      int      `json:"added"`
	LiveAdded  int      `json:"live_added"`
	DemoAdded  int      `json:"demo_added"`
	Skipped    int      `json:"skipped"`
	Dropped    int      `json:"dropped"`
	Mode       Mode     `json:"mode"`
	Escalated  bool     `json:"escalated"`
	Reason     Reason   `json:"reason,omitempty"`
}

// Prober reports whether a site is reachable
type Prober interface {
	Probe(ctx context.Context, def site.Definition) bool
}
