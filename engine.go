package loginguard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"loginguard/internal/bus"
	"loginguard/internal/privacy"
	"loginguard/internal/store"
)

// Engine is the rate limit manager: the one component encoding the
// lockout/delay policy. Construct it through [Builder.Build]; after that all
// methods are safe for concurrent use.
type Engine struct {
	mu     sync.RWMutex
	policy RateLimitConfig

	cfg        Config
	store      *store.Store
	classifier *Classifier
	events     *eventDispatcher
	metrics    *Metrics
	provider   AuthProvider
	clock      Clock
	log        *zap.Logger
	hasher     privacy.Hasher
	changeBus  bus.Bus

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// CheckRateLimit evaluates the current policy against identifier's stored
// state. It never fails: absent, unreadable, or corrupt state evaluates to
// the safe default (not locked, full attempts remaining).
func (e *Engine) CheckRateLimit(ctx context.Context, identifier string) RateLimitStatus {
	if e == nil {
		return RateLimitStatus{CanAttempt: true}
	}
	id := normalizeIdentifier(identifier)
	pol := e.GetConfig()

	rec := e.store.Get(ctx, id)
	status := statusFor(rec, pol, e.clock.Now())

	if status.CanAttempt {
		e.metricInc(MetricCheckAllowed)
	} else {
		e.metricInc(MetricCheckDenied)
	}
	return status
}

// RecordFailedAttempt counts one failed sign-in for identifier: bumps the
// counter, stamps the attempt time, and sets the lockout exactly once at the
// threshold crossing. Failures recorded during an active lockout update the
// attempt time but never extend the lockout. Returns the post-increment
// status.
func (e *Engine) RecordFailedAttempt(ctx context.Context, identifier string) RateLimitStatus {
	if e == nil {
		return RateLimitStatus{CanAttempt: true}
	}
	id := normalizeIdentifier(identifier)
	pol := e.GetConfig()
	now := e.clock.Now()
	nowMs := now.UnixMilli()

	rec := e.store.Get(ctx, id)
	if rec == nil {
		rec = &store.Record{CreatedAt: nowMs}
	}

	if rec.LockoutUntil > 0 && rec.LockoutUntil <= nowMs {
		e.metricInc(MetricLockoutsExpired)
		e.logLockoutExpired(ctx, id)
		rec.FailedAttempts = 0
		rec.LockoutUntil = 0
	}

	if rec.LockoutUntil > nowMs {
		rec.LastAttempt = nowMs
		rec.UpdatedAt = nowMs
	} else {
		rec.FailedAttempts++
		if rec.FailedAttempts > pol.MaxAttempts {
			rec.FailedAttempts = pol.MaxAttempts
		}
		rec.LastAttempt = nowMs
		rec.UpdatedAt = nowMs
		if rec.FailedAttempts >= pol.MaxAttempts && rec.LockoutUntil == 0 {
			rec.LockoutUntil = nowMs + pol.LockoutDuration.Milliseconds()
			e.metricInc(MetricLockoutsTriggered)
			e.logAccountLocked(ctx, id, pol.LockoutDuration, pol.MaxAttempts)
			e.log.Warn("account lockout triggered",
				zap.String("identifier_digest", e.hasher.Digest(id)),
				zap.Duration("lockout_duration", pol.LockoutDuration))
		}
	}

	e.store.Set(ctx, id, rec)
	e.metricInc(MetricFailedAttempts)
	e.logFailedLogin(ctx, id, rec.FailedAttempts)

	status := statusFor(rec, pol, now)
	return status
}

// ResetFailedAttempts clears identifier's state entirely. Idempotent; called
// after successful authentication or a manual unlock.
func (e *Engine) ResetFailedAttempts(ctx context.Context, identifier string) {
	if e == nil {
		return
	}
	id := normalizeIdentifier(identifier)
	e.store.Remove(ctx, id)
	e.metricInc(MetricResets)
}

// AddStateChangeListener registers fn for identifier's state changes, both
// this process's own writes and writes observed from other contexts sharing
// the durable tier. The returned ID removes the registration.
func (e *Engine) AddStateChangeListener(identifier string, fn StateChangeListener) ListenerID {
	if e == nil || fn == nil {
		return 0
	}
	id := normalizeIdentifier(identifier)
	lid := e.store.AddListener(id, func(ident string, rec *store.Record) {
		status := statusFor(rec, e.GetConfig(), e.clock.Now())
		fn(ident, status)
	})
	return ListenerID(lid)
}

// RemoveStateChangeListener deregisters a listener. Unknown IDs are ignored.
func (e *Engine) RemoveStateChangeListener(identifier string, id ListenerID) {
	if e == nil {
		return
	}
	e.store.RemoveListener(normalizeIdentifier(identifier), int64(id))
}

// CleanupExpiredStates sweeps all tiers for records past the staleness
// horizon. Safe to call redundantly and concurrently. Returns the number of
// identifiers removed.
func (e *Engine) CleanupExpiredStates(ctx context.Context) int {
	if e == nil {
		return 0
	}
	n := e.store.Cleanup(ctx)
	if n > 0 {
		e.logStateCleanup(ctx, n)
		e.log.Info("expired security state removed", zap.Int("count", n))
	}
	return n
}

// UpdateConfig replaces parts of the rate-limit policy at runtime. The new
// policy takes effect on the next check; existing records are not rewritten.
func (e *Engine) UpdateConfig(overrides RateLimitOverrides) error {
	if e == nil {
		return ErrEngineNotReady
	}

	e.mu.Lock()
	next := overrides.apply(e.policy)
	if err := next.validate(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.policy = next
	e.mu.Unlock()

	e.logConfigUpdated(context.Background(), next)
	e.log.Info("rate limit policy updated",
		zap.Int("max_attempts", next.MaxAttempts),
		zap.Duration("lockout_duration", next.LockoutDuration),
		zap.Duration("base_delay", next.BaseDelay),
		zap.Bool("progressive_delay", next.ProgressiveDelayEnabled))
	return nil
}

// GetConfig returns the active rate-limit policy.
func (e *Engine) GetConfig() RateLimitConfig {
	if e == nil {
		return RateLimitConfig{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// Classifier returns the error classifier consumers use to turn failures
// into user-safe feedback.
func (e *Engine) Classifier() *Classifier {
	if e == nil {
		return NewClassifier()
	}
	return e.classifier
}

// IdentifierDigest returns the one-way digest used for identifier in events
// and logs, for callers correlating their own records with the trail.
func (e *Engine) IdentifierDigest(identifier string) string {
	if e == nil {
		return ""
	}
	return e.hasher.Digest(normalizeIdentifier(identifier))
}

// MetricsSnapshot copies the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// EventsDropped reports how many security events were dropped by a
// saturated dispatcher buffer.
func (e *Engine) EventsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Dropped()
}

// Close drains the event dispatcher and detaches the change bus. The engine
// must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.events != nil {
		e.events.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
	if e.changeBus != nil {
		_ = e.changeBus.Close()
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// statusFor derives the check decision from a stored record under one policy
// snapshot. A nil record is the safe default.
func statusFor(rec *store.Record, pol RateLimitConfig, now time.Time) RateLimitStatus {
	safe := RateLimitStatus{
		CanAttempt:        true,
		AttemptsRemaining: pol.MaxAttempts,
	}
	if rec == nil {
		return safe
	}

	nowMs := now.UnixMilli()

	if rec.LockoutUntil > nowMs {
		return RateLimitStatus{
			IsLocked:      true,
			RemainingTime: time.Duration(rec.LockoutUntil-nowMs) * time.Millisecond,
		}
	}
	if rec.LockoutUntil != 0 {
		// Lazy expiry: a lapsed lockout reads as a clean slate.
		return safe
	}

	failed := rec.FailedAttempts
	if failed > pol.MaxAttempts {
		// Can only come from tampered storage; never build a super-lockout.
		failed = pol.MaxAttempts
	}

	st := RateLimitStatus{
		CanAttempt:        true,
		AttemptsRemaining: pol.MaxAttempts - failed,
	}
	if st.AttemptsRemaining < 0 {
		st.AttemptsRemaining = 0
	}

	if pol.ProgressiveDelayEnabled && failed > 0 {
		st.ProgressiveDelay = progressiveDelay(pol.BaseDelay, failed, nowMs-rec.LastAttempt)
		if st.ProgressiveDelay > 0 {
			st.CanAttempt = false
		}
	}
	return st
}

// progressiveDelay computes base * 2^(failed-1) minus the time already
// elapsed since the last attempt, floored at zero. The exponent is capped so
// a tampered counter cannot overflow the window.
func progressiveDelay(base time.Duration, failed int, elapsedMs int64) time.Duration {
	if base <= 0 || failed <= 0 {
		return 0
	}

	shift := uint(failed - 1)
	if shift > 20 {
		shift = 20
	}
	window := base << shift

	elapsed := time.Duration(elapsedMs) * time.Millisecond
	if elapsed < 0 {
		elapsed = 0
	}

	if elapsed >= window {
		return 0
	}
	return window - elapsed
}
