package loginguard

import (
	"bytes"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.Crypto.SealKey = bytes.Repeat([]byte{0x5a}, 32)
	cfg.Crypto.HashKey = []byte("digest-key")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"with seal key", func(c *Config) { c.Crypto.SealKey = bytes.Repeat([]byte{1}, 32) }, false},
		{"zero max attempts", func(c *Config) { c.RateLimit.MaxAttempts = 0 }, true},
		{"negative max attempts", func(c *Config) { c.RateLimit.MaxAttempts = -1 }, true},
		{"absurd max attempts", func(c *Config) { c.RateLimit.MaxAttempts = 1000 }, true},
		{"zero lockout", func(c *Config) { c.RateLimit.LockoutDuration = 0 }, true},
		{"negative base delay", func(c *Config) { c.RateLimit.BaseDelay = -time.Second }, true},
		{"zero base delay with delay enabled", func(c *Config) { c.RateLimit.BaseDelay = 0 }, true},
		{"zero base delay with delay disabled", func(c *Config) {
			c.RateLimit.BaseDelay = 0
			c.RateLimit.ProgressiveDelayEnabled = false
		}, false},
		{"empty key prefix", func(c *Config) { c.Store.KeyPrefix = "   " }, true},
		{"key prefix with separator", func(c *Config) { c.Store.KeyPrefix = "lg:v2" }, true},
		{"zero staleness horizon", func(c *Config) { c.Store.StalenessHorizon = 0 }, true},
		{"short seal key", func(c *Config) { c.Crypto.SealKey = []byte("too-short") }, true},
		{"long seal key", func(c *Config) { c.Crypto.SealKey = bytes.Repeat([]byte{1}, 33) }, true},
		{"audit enabled without buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, true},
		{"audit severity out of range", func(c *Config) { c.Audit.MinSeverity = Severity(9) }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.RateLimit.MaxAttempts != 5 {
		t.Fatalf("expected default MaxAttempts 5, got %d", cfg.RateLimit.MaxAttempts)
	}
	if cfg.RateLimit.LockoutDuration != 15*time.Minute {
		t.Fatalf("expected default lockout 15m, got %v", cfg.RateLimit.LockoutDuration)
	}
	if cfg.Store.StalenessHorizon != 24*time.Hour {
		t.Fatalf("expected default horizon 24h, got %v", cfg.Store.StalenessHorizon)
	}
}

func TestCloneConfigDetachesKeyMaterial(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)

	cfg.Crypto.SealKey[0] ^= 0xff
	cfg.Crypto.HashKey[0] ^= 0xff

	if clone.Crypto.SealKey[0] == cfg.Crypto.SealKey[0] {
		t.Fatal("clone must not share the seal key backing array")
	}
	if clone.Crypto.HashKey[0] == cfg.Crypto.HashKey[0] {
		t.Fatal("clone must not share the hash key backing array")
	}
}

func TestRateLimitOverridesApply(t *testing.T) {
	cur := RateLimitConfig{
		MaxAttempts:             5,
		LockoutDuration:         15 * time.Minute,
		BaseDelay:               time.Second,
		ProgressiveDelayEnabled: true,
	}

	if got := (RateLimitOverrides{}).apply(cur); got != cur {
		t.Fatalf("empty overrides must be a no-op, got %+v", got)
	}

	maxAttempts := 3
	lockout := time.Hour
	disabled := false
	got := RateLimitOverrides{
		MaxAttempts:             &maxAttempts,
		LockoutDuration:         &lockout,
		ProgressiveDelayEnabled: &disabled,
	}.apply(cur)

	if got.MaxAttempts != 3 || got.LockoutDuration != time.Hour || got.ProgressiveDelayEnabled {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.BaseDelay != time.Second {
		t.Fatalf("untouched field must survive, got %v", got.BaseDelay)
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	builder := New().WithRedis(rdb)
	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("second Build must fail")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit.MaxAttempts = 0

	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("Build must reject an invalid configuration")
	}
}
