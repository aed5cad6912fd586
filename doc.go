// Package loginguard provides client-side sign-in throttling for applications
// backed by a hosted authentication provider: per-identifier failed-attempt
// counting, progressive delays, temporary lockouts, and a privacy-preserving
// security event trail, persisted durably across process restarts and shared
// application contexts.
//
// The package is designed for event-driven client workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build], and every storage or encryption failure degrades to a safe
// permissive default rather than surfacing to the caller.
//
// # Architecture boundaries
//
// loginguard is the public surface. It exposes [Engine], [Builder], [Config],
// the [Classifier], event sinks, and value types (RateLimitStatus,
// MetricsSnapshot, SecurityEvent). All internal coordination (tiered state
// storage, payload sealing, cross-context change notification) lives under
// internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Check credentials or issue sessions. The authentication provider is an
//     opaque collaborator behind [AuthProvider]; any non-success result from
//     it is a failed attempt, nothing more.
//   - Surface raw storage, encryption, or provider errors to users. The
//     [Classifier] maps every failure to a closed set of user-safe messages.
//   - Log or persist a raw identifier. Identifiers appear in events and logs
//     only as deterministic one-way digests.
//
// # Degradation contract
//
// CheckRateLimit, RecordFailedAttempt, and ResetFailedAttempts never fail.
// When the durable tier is unreachable or a stored record cannot be trusted,
// the engine proceeds with the safe default (not locked, full attempts
// remaining) and records the degradation in its event trail and metrics.
package loginguard
