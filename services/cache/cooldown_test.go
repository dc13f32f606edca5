package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// MockCache is an in-memory CacheService for tests
type MockCache struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func NewMockCache() *MockCache {
	return &MockCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *MockCache) Get(key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *MockCache) Set(key string, value []byte, expiration time.Duration) error {
	m.data[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *MockCache) Delete(key string) error {
	delete(m.data, key)
	return nil
}

var _ CacheService = (*MockCache)(nil)

func TestCooldown(t *testing.T) {
	mc := NewMockCache()
	c := NewCooldown(mc, 500*time.Second)

	assert.False(t, c.Active("www.daraz.pk"))
	assert.NoError(t, c.Start("www.daraz.pk"))
	assert.True(t, c.Active("www.daraz.pk"))
	assert.False(t, c.Active("www.amazon.com"))

	assert.Equal(t, "500", string(mc.data["cooldown:www.daraz.pk"]))
	assert.Equal(t, 500*time.Second, mc.ttls["cooldown:www.daraz.pk"])
}

func TestCooldownCacheErrorDoesNotBlock(t *testing.T) {
	mc := NewMockCache()
	mc.getErr = errors.New("connection refused")
	c := NewCooldown(mc, time.Minute)

	assert.False(t, c.Active("www.daraz.pk"))
}

func TestNilCooldown(t *testing.T) {
	c := NewCooldown(nil, time.Minute)
	assert.Nil(t, c)
	assert.False(t, c.Active("www.daraz.pk"))
	assert.NoError(t, c.Start("www.daraz.pk"))
	assert.Equal(t, time.Duration(0), c.TTL())
}
