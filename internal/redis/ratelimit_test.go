package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterHandshakes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	limiter := NewRateLimiter(client, RateLimitConfig{
		HandshakeLimit:  2,
		HandshakeWindow: time.Minute,
		APILimit:        1,
		APIWindow:       time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowHandshake(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := limiter.AllowHandshake(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	// Other IPs and other buckets are independent.
	res, err = limiter.AllowHandshake(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = limiter.AllowAPI(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	require.NoError(t, limiter.Reset(ctx, "10.0.0.1"))
	res, err = limiter.AllowHandshake(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
