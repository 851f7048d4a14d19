package config

import "time"

// RateLimitConfig configures one Redis token bucket.  Capacity tokens are
// available up front and RefillTokens come back every RefillInterval.
// KeyStrategy picks which of ip, user and route make up the bucket key.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the global limit applied to every request.
// RATE_LIMIT_BURST and RATE_LIMIT_REFILL_EVERY are accepted as aliases of
// the capacity and a one token refill.
func LoadRateLimitConfig() RateLimitConfig {
	c := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		c.Capacity = b
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		c.RefillTokens = 1
		c.RefillInterval = every
	}
	return c.normalized()
}

// LoadBookingRateLimitConfig reads the per customer limit on booking and
// payment writes.  It runs after JWTAuth, so buckets are keyed by user.
func LoadBookingRateLimitConfig() RateLimitConfig {
	c := RateLimitConfig{
		Enabled:        envBool("BOOKING_RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("BOOKING_RATE_LIMIT_CAPACITY", 10),
		RefillTokens:   1,
		RefillInterval: envDur("BOOKING_RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
		TTL:            envDur("BOOKING_RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    "user",
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl") + ":booking",
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	return c.normalized()
}

// normalized clamps values the Lua script cannot work with.  Keys live for
// at least five refill intervals.
func (c RateLimitConfig) normalized() RateLimitConfig {
	c.Capacity = max(c.Capacity, 1)
	c.RefillTokens = max(c.RefillTokens, 1)
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	c.TTL = max(c.TTL, 5*c.RefillInterval)
	return c
}
