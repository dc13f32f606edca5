package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "sjsage522/harvester/pkg/errors"
	"sjsage522/harvester/services/cache"
)

// MockRenderer returns a fixed error from Navigate and counts calls
type MockRenderer struct {
	err   error
	calls int
}

func (m *MockRenderer) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	m.calls++
	return m.err
}

func (m *MockRenderer) FindAll(selector string) ([]Element, error) { return nil, nil }

func (m *MockRenderer) Close() error { return nil }

var _ Renderer = (*MockRenderer)(nil)

// MockCache is an in-memory cache.CacheService
type MockCache struct {
	data map[string][]byte
}

func (m *MockCache) Get(key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (m *MockCache) Set(key string, value []byte, expiration time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func TestWithCooldownStartsOnRateLimit(t *testing.T) {
	mc := &MockCache{data: map[string][]byte{}}
	inner := &MockRenderer{err: herrors.New(herrors.ErrorTypeRateLimit, "www.daraz.pk", "429", nil)}
	r := WithCooldown(inner, cache.NewCooldown(mc, time.Minute))

	err := r.Navigate(context.Background(), "https://www.daraz.pk/catalog/?q=creatine", time.Second)
	assert.True(t, herrors.Is(err, herrors.ErrorTypeRateLimit))
	assert.Contains(t, mc.data, cache.Key("www.daraz.pk"))

	// Cooling down: the inner renderer is not called again
	err = r.Navigate(context.Background(), "https://www.daraz.pk/catalog/?q=vitamins", time.Second)
	assert.True(t, herrors.Is(err, herrors.ErrorTypeRateLimit))
	assert.Equal(t, 1, inner.calls)

	// Other hosts are unaffected
	inner.err = nil
	require.NoError(t, r.Navigate(context.Background(), "https://www.amazon.com/s?k=creatine", time.Second))
	assert.Equal(t, 2, inner.calls)
}

func TestWithCooldownIgnoresOtherErrors(t *testing.T) {
	mc := &MockCache{data: map[string][]byte{}}
	inner := &MockRenderer{err: herrors.NewRenderFailure("www.daraz.pk", "boom", nil)}
	r := WithCooldown(inner, cache.NewCooldown(mc, time.Minute))

	err := r.Navigate(context.Background(), "https://www.daraz.pk/", time.Second)
	assert.True(t, herrors.Is(err, herrors.ErrorTypeRenderFailure))
	assert.Empty(t, mc.data)
}

func TestWithCooldownNil(t *testing.T) {
	inner := &MockRenderer{}
	assert.Same(t, inner, WithCooldown(inner, nil))
}
