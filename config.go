package loginguard

import (
	"errors"
	"strings"
	"time"
)

// Config is the full engine configuration. Construct one via defaults
// ([New] starts from them), adjust the sections you need, and pass it to
// [Builder.WithConfig]. After Build the only mutable section is RateLimit,
// through [Engine.UpdateConfig].
type Config struct {
	RateLimit RateLimitConfig
	Store     StoreConfig
	Crypto    CryptoConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig is the lockout and progressive-delay policy. It may be
// replaced at runtime; the new policy takes effect on the next check and
// never rewrites existing records.
type RateLimitConfig struct {
	// MaxAttempts is the failed-attempt threshold that triggers a lockout.
	MaxAttempts int
	// LockoutDuration is the length of the lockout window.
	LockoutDuration time.Duration
	// BaseDelay seeds the progressive delay curve:
	// BaseDelay * 2^(failedAttempts-1), measured from the last attempt.
	BaseDelay time.Duration
	// ProgressiveDelayEnabled turns the per-attempt cooldown on or off.
	// Lockouts apply regardless.
	ProgressiveDelayEnabled bool
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls the tiered security state store.
type StoreConfig struct {
	// KeyPrefix namespaces every durable key and the change channel.
	KeyPrefix string
	// StalenessHorizon bounds record lifetime: the cleanup sweep removes
	// records not updated within it, and lockouts expired for longer than it.
	StalenessHorizon time.Duration
	// FileTierDir enables the session-scoped file tier when non-empty. It is
	// the fallback between the durable tier and process memory.
	FileTierDir string
}

/*
====================================
CRYPTO CONFIG
====================================
*/

// CryptoConfig controls the seal boundary and identifier digests.
type CryptoConfig struct {
	// SealKey enables sealed durable payloads when set. Must be exactly 32
	// bytes. When empty, records are stored as plain JSON.
	SealKey []byte
	// HashKey keys the one-way identifier digests used in events and logs.
	// When empty, digests fall back to an unkeyed hash and remain
	// deterministic but are easier to brute-force offline.
	HashKey []byte
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous security event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the caller when the
	// buffer is saturated. Dropped events are counted.
	DropIfFull bool
	// MinSeverity filters out events below this severity before dispatch.
	// Zero means no floor.
	MinSeverity Severity
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: five attempts, a 15
// minute lockout, progressive delay from one second, and a 24 hour
// staleness horizon. Audit and metrics start disabled.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			MaxAttempts:             5,
			LockoutDuration:         15 * time.Minute,
			BaseDelay:               time.Second,
			ProgressiveDelayEnabled: true,
		},
		Store: StoreConfig{
			KeyPrefix:        "lg",
			StalenessHorizon: 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Crypto.SealKey = cloneBytes(cfg.Crypto.SealKey)
	out.Crypto.HashKey = cloneBytes(cfg.Crypto.HashKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internal consistency. Build calls it;
// callers mutating a Config by hand can call it early for better errors.
func (c *Config) Validate() error {
	if err := c.RateLimit.validate(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Store.KeyPrefix) == "" {
		return errors.New("Store KeyPrefix must not be empty")
	}
	if strings.ContainsAny(c.Store.KeyPrefix, ": \t\n") {
		return errors.New("Store KeyPrefix must not contain separators or whitespace")
	}
	if c.Store.StalenessHorizon <= 0 {
		return errors.New("Store StalenessHorizon must be > 0")
	}

	if len(c.Crypto.SealKey) != 0 && len(c.Crypto.SealKey) != 32 {
		return errors.New("Crypto SealKey must be exactly 32 bytes when set")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}
	if c.Audit.MinSeverity > SeverityCritical {
		return errors.New("Audit MinSeverity out of range")
	}

	return nil
}

func (rl *RateLimitConfig) validate() error {
	if rl.MaxAttempts <= 0 {
		return errors.New("RateLimit MaxAttempts must be > 0")
	}
	if rl.MaxAttempts > 64 {
		return errors.New("RateLimit MaxAttempts is unreasonably large")
	}
	if rl.LockoutDuration <= 0 {
		return errors.New("RateLimit LockoutDuration must be > 0")
	}
	if rl.BaseDelay < 0 {
		return errors.New("RateLimit BaseDelay must be >= 0")
	}
	if rl.ProgressiveDelayEnabled && rl.BaseDelay == 0 {
		return errors.New("RateLimit BaseDelay must be > 0 when progressive delay is enabled")
	}
	return nil
}

// RateLimitOverrides carries a partial policy update for
// [Engine.UpdateConfig]. Nil fields leave the current value untouched.
type RateLimitOverrides struct {
	MaxAttempts             *int
	LockoutDuration         *time.Duration
	BaseDelay               *time.Duration
	ProgressiveDelayEnabled *bool
}

func (o RateLimitOverrides) apply(cur RateLimitConfig) RateLimitConfig {
	out := cur
	if o.MaxAttempts != nil {
		out.MaxAttempts = *o.MaxAttempts
	}
	if o.LockoutDuration != nil {
		out.LockoutDuration = *o.LockoutDuration
	}
	if o.BaseDelay != nil {
		out.BaseDelay = *o.BaseDelay
	}
	if o.ProgressiveDelayEnabled != nil {
		out.ProgressiveDelayEnabled = *o.ProgressiveDelayEnabled
	}
	return out
}
