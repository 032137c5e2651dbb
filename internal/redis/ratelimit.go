package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{ip}:handshake - websocket upgrades per window
// - ratelimit:{ip}:api - REST calls per window

type RateLimitConfig struct {
	HandshakeLimit  int
	HandshakeWindow time.Duration
	APILimit        int
	APIWindow       time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		HandshakeLimit:  30,
		HandshakeWindow: 60 * time.Second,
		APILimit:        300,
		APIWindow:       60 * time.Second,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

// AllowHandshake checks if an IP can open another websocket.
func (r *RateLimiter) AllowHandshake(ctx context.Context, ip string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, fmt.Sprintf("ratelimit:%s:handshake", ip), r.config.HandshakeLimit, r.config.HandshakeWindow)
}

// AllowAPI checks if an IP can make another REST call.
func (r *RateLimiter) AllowAPI(ctx context.Context, ip string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, fmt.Sprintf("ratelimit:%s:api", ip), r.config.APILimit, r.config.APIWindow)
}

var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	else
		return {0, 0, ttl}
	end
`)

// checkLimit increments and checks a fixed window counter atomically.
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	ttl, _ := values[2].(int64)

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     limit,
	}, nil
}

// Reset clears every counter for an IP.
func (r *RateLimiter) Reset(ctx context.Context, ip string) error {
	return r.client.Del(ctx,
		fmt.Sprintf("ratelimit:%s:handshake", ip),
		fmt.Sprintf("ratelimit:%s:api", ip),
	).Err()
}
