package loginguard

import (
	"context"
	"fmt"
	"strings"
)

// Login is the thin sign-in orchestration: validate input, consult the rate
// limiter, call the authentication provider, and record the outcome. Any
// non-success from the provider counts as a failed attempt regardless of its
// reason, and the returned error never distinguishes "unknown account" from
// "wrong password".
//
// A second Login for the same identifier while one is pending is rejected
// with [ErrConcurrentLogin] without contacting the provider. This backstops
// the UI-level submit guard, which can race under rapid double-clicks.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	id := normalizeIdentifier(identifier)
	if err := validateLoginInput(id, secret); err != nil {
		e.logValidationError(ctx, id)
		return nil, err
	}

	if !e.beginLogin(id) {
		e.metricInc(MetricConcurrentBlocked)
		e.logConcurrentBlocked(ctx, id)
		return nil, ErrConcurrentLogin
	}
	defer e.endLogin(id)

	status := e.CheckRateLimit(ctx, id)
	if status.IsLocked {
		e.metricInc(MetricLoginFailure)
		e.logRateLimitExceeded(ctx, id, 0)
		return nil, ErrAccountLocked
	}
	if !status.CanAttempt {
		e.metricInc(MetricLoginFailure)
		e.logRateLimitExceeded(ctx, id, status.AttemptsRemaining)
		return nil, ErrLoginRateLimited
	}

	if e.provider == nil {
		return nil, ErrEngineNotReady
	}

	result, err := e.provider.SignIn(ctx, id, secret)
	if err != nil || result == nil {
		after := e.RecordFailedAttempt(ctx, id)
		e.metricInc(MetricLoginFailure)
		if after.IsLocked {
			return nil, ErrAccountLocked
		}
		if isNetworkError(err) {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return nil, ErrInvalidCredentials
	}

	e.ResetFailedAttempts(ctx, id)
	e.metricInc(MetricLoginSuccess)
	e.logSuccessfulLogin(ctx, id)
	return result, nil
}

func (e *Engine) beginLogin(identifier string) bool {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()

	if _, pending := e.inflight[identifier]; pending {
		return false
	}
	e.inflight[identifier] = struct{}{}
	return true
}

func (e *Engine) endLogin(identifier string) {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	delete(e.inflight, identifier)
}

// validateLoginInput is local-only: it never contacts the authentication
// provider. The identifier has already been normalized.
func validateLoginInput(identifier, secret string) error {
	if identifier == "" {
		return fmt.Errorf("%w: empty identifier", ErrValidation)
	}
	if secret == "" {
		return fmt.Errorf("%w: empty secret", ErrValidation)
	}

	at := strings.Index(identifier, "@")
	if at <= 0 || at == len(identifier)-1 || strings.ContainsAny(identifier, " \t\r\n") {
		return fmt.Errorf("%w: identifier is not a usable account handle", ErrValidation)
	}
	return nil
}
