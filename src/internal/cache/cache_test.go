package cache

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(enabled bool) *CacheManager {
	cfg := viper.New()
	cfg.Set("cache.enabled", enabled)
	cfg.Set("cache.key_prefix", "test:")
	return NewCacheManager(cfg)
}

func TestCacheManagerJSON(t *testing.T) {
	ctx := context.Background()
	cm := newManager(true)
	defer cm.Close()

	type tag struct {
		ID   uint   `json:"id"`
		Slug string `json:"slug"`
	}

	require.NoError(t, cm.SetJSON(ctx, CacheKeyTags, []tag{{1, "breakfast"}}, time.Minute))

	var got []tag
	require.NoError(t, cm.GetJSON(ctx, CacheKeyTags, &got))
	assert.Equal(t, []tag{{1, "breakfast"}}, got)

	require.NoError(t, cm.SetJSON(ctx, TagKey(1), tag{1, "breakfast"}, time.Minute))
	var one tag
	require.NoError(t, cm.GetJSON(ctx, TagKey(1), &one))
	assert.Equal(t, "breakfast", one.Slug)

	require.NoError(t, cm.DeletePattern(ctx, "tags:*"))
	assert.ErrorIs(t, cm.GetJSON(ctx, CacheKeyTags, &got), ErrMiss)
	assert.ErrorIs(t, cm.GetJSON(ctx, TagKey(1), &one), ErrMiss)
}

func TestCacheManagerDisabled(t *testing.T) {
	ctx := context.Background()
	cm := newManager(false)

	require.NoError(t, cm.Set(ctx, "k", "v", time.Minute))
	_, err := cm.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	// Flags are kept even with caching switched off
	require.NoError(t, cm.Mark(ctx, RevokedTokenKey("abc"), time.Minute))
	ok, err := cm.Exists(ctx, RevokedTokenKey("abc"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	require.NoError(t, mc.Set(ctx, "short", "v", -time.Second))
	ok, _ := mc.Exists(ctx, "short")
	assert.False(t, ok)

	require.NoError(t, mc.Set(ctx, "long", "v", time.Hour))
	v, err := mc.Get(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestMatchPattern(t *testing.T) {
	assert.True(t, matchPattern("*", "anything"))
	assert.True(t, matchPattern("ingredients:*", "ingredients:sug"))
	assert.True(t, matchPattern("*:all", "tags:all"))
	assert.False(t, matchPattern("tags:*", "ingredients:"))
}
