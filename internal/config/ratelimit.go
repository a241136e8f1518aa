package config

import "time"

// RateLimitConfig configures the token bucket guarding device token
// issuance.  Each key starts with Capacity tokens and regains RefillTokens
// every RefillInterval.
type RateLimitConfig struct {
    Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
    Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"10"`
    RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
    RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"6s"`
    TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
    // KeyStrategy is "ip", "device" or "ip_device".
    KeyStrategy string `env:"RATE_LIMIT_KEY_STRATEGY" envDefault:"ip_device"`
    Prefix      string `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
    Debug       bool   `env:"RATE_LIMIT_DEBUG" envDefault:"false"`
}

// normalized clamps values the limiter cannot work with.  Keys must live
// at least five refill intervals or buckets reset before they refill.
func (r RateLimitConfig) normalized() RateLimitConfig {
    if r.Capacity < 1 {
        r.Capacity = 1
    }
    if r.RefillTokens < 1 {
        r.RefillTokens = 1
    }
    if r.RefillInterval <= 0 {
        r.RefillInterval = time.Second
    }
    if minTTL := 5 * r.RefillInterval; r.TTL < minTTL {
        r.TTL = minTTL
    }
    return r
}
