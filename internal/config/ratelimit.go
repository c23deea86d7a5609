package config

import "time"

// RateLimitConfig drives the Redis token bucket in front of hold
// creation.  KeyStrategy selects what identifies a caller: "owner_ip"
// (owner token when present, client IP otherwise), "ip" or "owner".
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
}

func loadRateLimitConfig(l *loader) RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       l.envInt("RATE_LIMIT_CAPACITY", 20),
		RefillTokens:   l.envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: l.envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            l.envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    l.envStr("RATE_LIMIT_KEY_STRATEGY", "owner_ip"),
		Prefix:         l.envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	if b := l.envInt("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	// A bucket must outlive a full refill or idle callers get a fresh one.
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}
