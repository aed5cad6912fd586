package loginguard

import (
	"context"
	"strings"
	"time"
)

// RateLimitStatus is the decision produced by [Engine.CheckRateLimit]. It is
// derived from stored counters and the active policy; it is never persisted.
type RateLimitStatus struct {
	// IsLocked is true while a lockout window is active.
	IsLocked bool
	// CanAttempt is true when the caller may contact the authentication
	// provider: not locked and no progressive delay outstanding.
	CanAttempt bool
	// AttemptsRemaining counts down from MaxAttempts, floored at zero.
	AttemptsRemaining int
	// RemainingTime is the time left on the lockout window. Zero when not
	// locked.
	RemainingTime time.Duration
	// ProgressiveDelay is the cooldown left before the next attempt is
	// allowed. Zero when locked or when no delay is outstanding.
	ProgressiveDelay time.Duration
}

// AuthResult is the successful outcome of an authentication provider call.
type AuthResult struct {
	UserID       string
	SessionToken string
}

// AuthProvider is the external collaborator that performs the actual
// credential check. loginguard treats any non-nil error or nil result as a
// failed attempt regardless of the reason encoded in it.
type AuthProvider interface {
	SignIn(ctx context.Context, identifier, secret string) (*AuthResult, error)
}

// Clock abstracts wall-clock reads so lockout expiry and progressive-delay
// behavior can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// StateChangeListener observes mutations of one identifier's security state,
// both local writes and writes from other contexts sharing the durable tier.
type StateChangeListener func(identifier string, status RateLimitStatus)

// ListenerID identifies a registered listener for removal.
type ListenerID int64

// normalizeIdentifier canonicalizes an account handle before it is used as a
// rate-limit key. All public entry points normalize exactly once.
func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
