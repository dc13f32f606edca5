package cache

import (
	"errors"
	"strconv"
	"time"

	"sjsage522/harvester/logger"
)

// Cooldown blocks requests to a host for a fixed time after it pushed back.
// A nil *Cooldown never blocks.
type Cooldown struct {
	svc CacheService
	ttl time.Duration
}

// NewCooldown creates a cooldown tracker over svc
func NewCooldown(svc CacheService, ttl time.Duration) *Cooldown {
	if svc == nil {
		return nil
	}
	return &Cooldown{svc: svc, ttl: ttl}
}

// Key returns the cache key used for host
func Key(host string) string {
	return "cooldown:" + host
}

// Active reports whether host is still cooling down. Cache errors other
// than a miss are logged and treated as not cooling down.
func (c *Cooldown) Active(host string) bool {
	if c == nil || host == "" {
		return false
	}
	_, err := c.svc.Get(Key(host))
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrMiss) {
		logger.ForCache().Warn().Err(err).Str("host", host).Msg("Cooldown lookup failed")
	}
	return false
}

// Start begins the cooldown window for host
func (c *Cooldown) Start(host string) error {
	if c == nil || host == "" {
		return nil
	}
	logger.ForCache().Info().Str("host", host).Dur("ttl", c.ttl).Msg("Host cooling down")
	return c.svc.Set(Key(host), []byte(strconv.Itoa(int(c.ttl/time.Second))), c.ttl)
}

// TTL returns the cooldown window
func (c *Cooldown) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}
