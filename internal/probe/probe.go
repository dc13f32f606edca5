// Package probe checks whether a site's home page is reachable before a
// harvest run picks the live path.
package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"slices"
	"time"

	"sjsage522/harvester/helpers"
	"sjsage522/harvester/internal/site"
	"sjsage522/harvester/logger"
	"sjsage522/harvester/services/cache"
)

// Prober resolves a site's host and issues a bounded GET against its base
// URL. Only a 200 answer counts as accessible.
type Prober struct {
	client    *http.Client
	resolver  *net.Resolver
	userAgent string
	timeout   time.Duration
	cooldown  *cache.Cooldown
	status    *site.Status
}

// New creates a prober that records outcomes in status. cooldown may be nil.
func New(status *site.Status, userAgent string, timeout time.Duration, cooldown *cache.Cooldown) *Prober {
	return &Prober{
		client:    &http.Client{},
		resolver:  net.DefaultResolver,
		userAgent: userAgent,
		timeout:   timeout,
		cooldown:  cooldown,
		status:    status,
	}
}

// Probe checks one site and records the outcome
func (p *Prober) Probe(ctx context.Context, def site.Definition) bool {
	ok := p.check(ctx, def)
	p.status.Set(def.ID, ok)
	return ok
}

// ProbeAll checks every site in turn and returns the outcomes by id
func (p *Prober) ProbeAll(ctx context.Context, defs []site.Definition) map[string]bool {
	out := make(map[string]bool, len(defs))
	for _, def := range defs {
		if ctx.Err() != nil {
			break
		}
		out[def.ID] = p.Probe(ctx, def)
	}
	return out
}

func (p *Prober) check(ctx context.Context, def site.Definition) bool {
	log := logger.ForSite(def.ID)
	host := def.Host()

	if p.cooldown.Active(host) {
		log.Warn().Str("host", host).Msg("Site is cooling down")
		return false
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if _, err := p.resolver.LookupHost(ctx, host); err != nil {
		log.Warn().Err(err).Str("host", host).Msg("DNS resolution failed")
		return false
	}

	req, err := helpers.NewRequest(ctx, def.BaseURL, p.userAgent)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to build probe request")
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", def.BaseURL).Msg("Site is not reachable")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
			if err := p.cooldown.Start(host); err != nil {
				log.Warn().Err(err).Msg("Failed to record cooldown")
			}
		}
		log.Warn().Int("status", resp.StatusCode).Str("url", def.BaseURL).Msg("Site answered with non-200 status")
		return false
	}

	log.Info().Str("url", def.BaseURL).Msg("Site is accessible")
	return true
}
