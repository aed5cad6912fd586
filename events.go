package loginguard

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// LogEvent submits an event to the security trail. Missing ID, timestamp,
// and session correlation are filled in, and a plaintext "identifier"
// metadata key is replaced with its one-way digest before the event leaves
// the engine.
func (e *Engine) LogEvent(ctx context.Context, event SecurityEvent) {
	if e == nil || e.events == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.clock.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = sessionIDFromContext(ctx)
	}
	if event.Component == "" {
		event.Component = componentFromContext(ctx)
	}
	if raw, ok := event.Metadata["identifier"]; ok {
		metadata := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			metadata[k] = v
		}
		metadata["identifier"] = e.hasher.Digest(raw)
		event.Metadata = metadata
	}

	e.events.Emit(ctx, event)
}

func (e *Engine) emitEvent(
	ctx context.Context,
	eventType EventType,
	severity Severity,
	success bool,
	identifier string,
	message string,
	metadata map[string]string,
) {
	if e == nil || e.events == nil {
		return
	}

	e.events.Emit(ctx, SecurityEvent{
		ID:               uuid.NewString(),
		Timestamp:        e.clock.Now().UTC(),
		EventType:        eventType,
		Severity:         severity,
		IdentifierDigest: e.hasher.Digest(identifier),
		SessionID:        sessionIDFromContext(ctx),
		Component:        componentFromContext(ctx),
		Success:          success,
		Message:          message,
		Metadata:         metadata,
	})
}

func (e *Engine) logFailedLogin(ctx context.Context, identifier string, attemptNumber int) {
	e.emitEvent(ctx, EventFailedLogin, SeverityMedium, false, identifier, "", map[string]string{
		"attempt_number": strconv.Itoa(attemptNumber),
	})
}

func (e *Engine) logSuccessfulLogin(ctx context.Context, identifier string) {
	e.emitEvent(ctx, EventSuccessfulLogin, SeverityLow, true, identifier, "", nil)
}

func (e *Engine) logAccountLocked(ctx context.Context, identifier string, duration time.Duration, maxAttempts int) {
	e.emitEvent(ctx, EventAccountLocked, SeverityHigh, false, identifier, "", map[string]string{
		"lockout_duration_ms": strconv.FormatInt(duration.Milliseconds(), 10),
		"max_attempts":        strconv.Itoa(maxAttempts),
	})
}

func (e *Engine) logLockoutExpired(ctx context.Context, identifier string) {
	e.emitEvent(ctx, EventLockoutExpired, SeverityLow, true, identifier, "", nil)
}

func (e *Engine) logRateLimitExceeded(ctx context.Context, identifier string, attemptsRemaining int) {
	e.emitEvent(ctx, EventRateLimitExceeded, SeverityMedium, false, identifier, "", map[string]string{
		"attempts_remaining": strconv.Itoa(attemptsRemaining),
	})
}

func (e *Engine) logValidationError(ctx context.Context, identifier string) {
	e.emitEvent(ctx, EventValidationError, SeverityLow, false, identifier, "", nil)
}

func (e *Engine) logConcurrentBlocked(ctx context.Context, identifier string) {
	e.emitEvent(ctx, EventConcurrentRequestBlocked, SeverityLow, false, identifier, "", nil)
}

func (e *Engine) logStorageFallback(tier string) {
	e.emitEvent(context.Background(), EventStorageError, SeverityHigh, false, "",
		"storage tier write failed, fell through", map[string]string{
			"tier": tier,
		})
}

func (e *Engine) logEncryptionFailure() {
	e.emitEvent(context.Background(), EventEncryptionError, SeverityCritical, false, "",
		"state payload could not be sealed, degraded to memory-only", nil)
}

func (e *Engine) logStateCleanup(ctx context.Context, removed int) {
	e.emitEvent(ctx, EventStateCleanup, SeverityLow, true, "", "", map[string]string{
		"removed": strconv.Itoa(removed),
	})
}

func (e *Engine) logConfigUpdated(ctx context.Context, pol RateLimitConfig) {
	e.emitEvent(ctx, EventConfigUpdated, SeverityLow, true, "", "", map[string]string{
		"max_attempts":      strconv.Itoa(pol.MaxAttempts),
		"lockout_ms":        strconv.FormatInt(pol.LockoutDuration.Milliseconds(), 10),
		"base_delay_ms":     strconv.FormatInt(pol.BaseDelay.Milliseconds(), 10),
		"progressive_delay": strconv.FormatBool(pol.ProgressiveDelayEnabled),
	})
}
