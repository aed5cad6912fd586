package loginguard

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for every provider-side
	// rejection. Wrong password and unknown account are indistinguishable
	// by design.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout window is active.
	ErrAccountLocked = errors.New("account locked")
	// ErrLoginRateLimited is returned while a progressive delay has not yet
	// elapsed.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrConcurrentLogin is returned when a sign-in for the same identifier
	// is already in flight in this process.
	ErrConcurrentLogin = errors.New("login already in flight")
	// ErrValidation is returned for malformed local input before the
	// authentication provider is ever contacted.
	ErrValidation = errors.New("invalid login input")
	// ErrProviderUnavailable wraps transport-level failures reaching the
	// authentication provider.
	ErrProviderUnavailable = errors.New("authentication provider unavailable")
	// ErrEngineNotReady is returned when an Engine is used without a
	// configured authentication provider.
	ErrEngineNotReady = errors.New("engine not initialized")
)
