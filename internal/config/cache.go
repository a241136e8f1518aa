package config

import (
    "strings"
    "time"
)

// CacheConfig defines settings for the menu response cache.  When Enabled
// is false or no Redis client is configured, caching is skipped.  Menus
// change rarely, so the default TTL is generous; Prefix namespaces the keys
// and MaxBodyBytes caps what a single entry may hold.
type CacheConfig struct {
    Enabled      bool          `env:"CACHE_ENABLED" envDefault:"true"`
    Methods      []string      `env:"CACHE_METHODS" envSeparator:"," envDefault:"GET"`
    TTL          time.Duration `env:"CACHE_TTL" envDefault:"5m"`
    Prefix       string        `env:"CACHE_PREFIX" envDefault:"menu"`
    MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Caches reports whether responses to method are cacheable.
func (c CacheConfig) Caches(method string) bool {
    for _, m := range c.Methods {
        if strings.EqualFold(strings.TrimSpace(m), method) {
            return true
        }
    }
    return false
}
