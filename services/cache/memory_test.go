package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCacheService()

	require.NoError(t, c.Set("cooldown:Vancouver Downtown", []byte("1"), time.Minute))

	value, err := c.Get("cooldown:Vancouver Downtown")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCacheService()
	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCacheService()
	require.NoError(t, c.Set("key", []byte("v"), time.Millisecond))

	time.Sleep(5 * time.Millisecond)

	_, err := c.Get("key")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewMemoryCacheService()
	require.NoError(t, c.Set("key", []byte("v"), 0))

	value, err := c.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCacheService()
	require.NoError(t, c.Set("key", []byte("v"), time.Minute))
	require.NoError(t, c.Delete("key"))

	_, err := c.Get("key")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
