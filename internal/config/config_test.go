package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LOCATION_ID", "loc-1")
	t.Setenv("PAYMENT_GATEWAY_URL", "http://pay.local")
	t.Setenv("DB_USER", "kiosk")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "pods")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DB.Port != "3306" || cfg.Currency != "USD" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.PodPollInterval != 5*time.Second || cfg.PodReservationTTL != 15*time.Minute {
		t.Fatalf("pod timings = %v/%v", cfg.PodPollInterval, cfg.PodReservationTTL)
	}
	if cfg.ReservationSweepSpec != "@every 1m" {
		t.Fatalf("sweep spec = %q", cfg.ReservationSweepSpec)
	}
	if !cfg.Cache.Caches("get") || cfg.Cache.Caches("POST") {
		t.Fatalf("cache methods = %v", cfg.Cache.Methods)
	}
	if cfg.DeviceTokenTTL() != 12*time.Hour {
		t.Fatalf("device token ttl = %v", cfg.DeviceTokenTTL())
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCATION_TAX_RATE", "0.0825")
	t.Setenv("POD_POLL_INTERVAL", "2s")
	t.Setenv("CACHE_METHODS", "GET, HEAD")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TaxRate != 0.0825 || cfg.PodPollInterval != 2*time.Second {
		t.Fatalf("overrides = %v/%v", cfg.TaxRate, cfg.PodPollInterval)
	}
	if !cfg.Cache.Caches("HEAD") {
		t.Fatalf("cache methods = %v", cfg.Cache.Methods)
	}
	if cfg.Redis.Address() != "cache:6380" {
		t.Fatalf("redis addr = %s", cfg.Redis.Address())
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCATION_ID", "")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("Load = %v, want parse env error", err)
	}
}

func TestLoadRejectsBadTaxRate(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCATION_TAX_RATE", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected tax rate error")
	}
}

func TestRateLimitNormalized(t *testing.T) {
	r := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: time.Second}.normalized()
	if r.Capacity != 1 || r.RefillTokens != 1 || r.RefillInterval != time.Second || r.TTL != 5*time.Second {
		t.Fatalf("normalized = %+v", r)
	}
}
