package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheKeySkipsEmptyPartsAndEscapesColons(t *testing.T) {
	assert.Equal(t, "dash:admin:u-1", CacheKey(CacheNamespaceDashboard, "admin", "", "u-1"))
	assert.Equal(t, "analytics:attendance:a|b", CacheKey(CacheNamespaceAnalytics, "attendance", "a:b"))
}

func TestCacheRememberLoadsOnceThenHits(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)

	loads := 0
	load := func(dest *[]string) func() error {
		return func() error {
			loads++
			*dest = []string{"7A", "7B"}
			return nil
		}
	}

	var first []string
	hit, err := cache.Remember(ctx, "dash:k", 0, &first, load(&first))
	require.NoError(t, err)
	assert.False(t, hit)

	var second []string
	hit, err = cache.Remember(ctx, "dash:k", 0, &second, load(&second))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)

	require.NoError(t, cache.InvalidateNamespace(ctx, CacheNamespaceDashboard))
	var third []string
	hit, err = cache.Remember(ctx, "dash:k", 0, &third, load(&third))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, loads)
}

func TestCacheRememberWithoutCacheAlwaysLoads(t *testing.T) {
	var cache *CacheService
	boom := errors.New("db down")

	var out int
	hit, err := cache.Remember(context.Background(), "k", 0, &out, func() error { out = 3; return nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, out)

	_, err = cache.Remember(context.Background(), "k", 0, &out, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, cache.InvalidateNamespace(context.Background(), CacheNamespaceAnalytics))
}
