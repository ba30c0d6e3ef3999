package memory

import (
	"context"
	"testing"
	"time"

	"github.com/nulzo/reliability-forge/internal/store/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_RoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "generated code", time.Minute))

	var got string
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "generated code", got)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), cache.ErrMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	now = now.Add(2 * time.Second)

	var got string
	assert.ErrorIs(t, c.Get(ctx, "k", &got), cache.ErrMiss)
}
