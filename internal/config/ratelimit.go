package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig tunes the token bucket guarding the unauthenticated
// visitor endpoints (the credential poll and the identity upload).  Those
// endpoints are reachable with nothing but a visit token, so the limiter
// keys on the client address and the presented token rather than on a
// principal.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int           // burst size per bucket
	RefillTokens   int           // tokens added per refill interval
	RefillInterval time.Duration // time between refills
	TTL            time.Duration // idle bucket expiry in Redis
	KeyStrategy    string        // ip | token | ip_token
	Prefix         string        // Redis key prefix
	Debug          bool          // expose the bucket key in a response header
}

// LoadRateLimitConfig reads the limiter settings from the environment.
// The defaults allow the visitor page's countdown poll (one request every
// couple of seconds) with headroom for a retry burst, while still choking
// token enumeration from a single address.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 2*time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_token"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "visitpass:rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	// A bucket must outlive a few refill cycles or idle visitors would
	// reset their budget by waiting out the TTL.
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
