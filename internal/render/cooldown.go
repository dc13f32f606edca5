package render

import (
	"context"
	"time"

	"sjsage522/harvester/logger"
	herrors "sjsage522/harvester/pkg/errors"
	"sjsage522/harvester/services/cache"
)

// throttled refuses to navigate to hosts that are cooling down and starts
// a cooldown whenever a host answers with a rate limit
type throttled struct {
	Renderer
	cooldown *cache.Cooldown
}

// WithCooldown wraps r with host cooldowns. A nil cooldown returns r as is.
func WithCooldown(r Renderer, c *cache.Cooldown) Renderer {
	if c == nil {
		return r
	}
	return &throttled{Renderer: r, cooldown: c}
}

func (t *throttled) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	host := hostOf(url)
	if t.cooldown.Active(host) {
		return herrors.NewRateLimit(host, t.cooldown.TTL())
	}

	err := t.Renderer.Navigate(ctx, url, timeout)
	if herrors.Is(err, herrors.ErrorTypeRateLimit) {
		if cerr := t.cooldown.Start(host); cerr != nil {
			logger.ForRenderer().Warn().Err(cerr).Str("host", host).Msg("Failed to record cooldown")
		}
	}
	return err
}
