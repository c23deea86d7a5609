package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_USER", "cinema")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_NAME", "inventory")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DB.Port != "3306" {
		t.Fatalf("unexpected ports: app=%s db=%s", cfg.Port, cfg.DB.Port)
	}
	inv := cfg.Inventory()
	if inv.Hold.DefaultTTL != 5*time.Minute || inv.Hold.MaxTTL != 15*time.Minute || inv.Hold.MaxSeats != 10 {
		t.Fatalf("unexpected hold config %+v", inv.Hold)
	}
	if inv.Retry.Attempts != 3 || inv.Sweep.Interval != time.Second {
		t.Fatalf("unexpected retry/sweep %+v %+v", inv.Retry, inv.Sweep)
	}
	if db := cfg.Database(); db.Name != "inventory" || db.MaxOpenConns != 25 {
		t.Fatalf("unexpected database config %+v", db)
	}
	if cfg.RateLimit.KeyStrategy != "owner_ip" || !cfg.RateLimit.Enabled {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
}

func TestLoadReportsEveryMissingVar(t *testing.T) {
	for _, k := range []string{"JWT_SECRET", "DB_USER", "DB_HOST", "DB_NAME"} {
		t.Setenv(k, "")
	}

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, k := range []string{"JWT_SECRET", "DB_USER", "DB_HOST", "DB_NAME"} {
		if !strings.Contains(err.Error(), k) {
			t.Errorf("error %q does not mention %s", err, k)
		}
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	setRequired(t)
	t.Setenv("HOLD_DEFAULT_TTL", "five minutes")
	t.Setenv("HOLD_MAX_SEATS", "ten")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HOLD_DEFAULT_TTL") || !strings.Contains(err.Error(), "HOLD_MAX_SEATS") {
		t.Fatalf("error = %v", err)
	}
}

func TestOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HOLD_DEFAULT_TTL", "2m")
	t.Setenv("HOLD_MAX_TTL", "10m")
	t.Setenv("HOLD_MAX_LIFETIME", "20m")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_ADDR", "ignored:1")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("EVENTS_CONSUMER_ENABLED", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hold.DefaultTTL != 2*time.Minute || cfg.Hold.MaxLifetime != 20*time.Minute {
		t.Fatalf("unexpected hold %+v", cfg.Hold)
	}
	if cfg.Redis.Addr != "cache:6380" {
		t.Fatalf("redis addr = %s", cfg.Redis.Addr)
	}
	if cfg.RateLimit.Capacity != 5 {
		t.Fatalf("capacity = %d", cfg.RateLimit.Capacity)
	}
	if cfg.RateLimit.TTL != 50*time.Second {
		t.Fatalf("ttl = %s, want raised to 5 refill intervals", cfg.RateLimit.TTL)
	}
	if !cfg.Events.ConsumerEnabled {
		t.Fatal("consumer should be enabled")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Hold:  HoldConfig{DefaultTTL: 5 * time.Minute, MaxTTL: 15 * time.Minute, MaxLifetime: 30 * time.Minute, MaxSeats: 10},
		Sweep: SweepConfig{Interval: time.Second},
		Store: StoreConfig{RetryAttempts: 3},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := base
	bad.Hold.DefaultTTL = 20 * time.Minute
	bad.Store.RetryAttempts = 0
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HOLD_DEFAULT_TTL") || !strings.Contains(err.Error(), "STORE_RETRY_ATTEMPTS") {
		t.Fatalf("error = %v", err)
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 2 {
		t.Fatalf("want two joined errors, got %v", err)
	}
}
