package loginguard

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// EventType names a security-relevant occurrence in the event trail.
type EventType string

const (
	// EventFailedLogin records one failed sign-in attempt.
	EventFailedLogin EventType = "failed_login"
	// EventSuccessfulLogin records a successful sign-in.
	EventSuccessfulLogin EventType = "successful_login"
	// EventAccountLocked records a lockout being triggered.
	EventAccountLocked EventType = "account_locked"
	// EventLockoutExpired records a lockout observed to have lapsed.
	EventLockoutExpired EventType = "lockout_expired"
	// EventRateLimitExceeded records an attempt denied by the throttle.
	EventRateLimitExceeded EventType = "rate_limit_exceeded"
	// EventValidationError records rejected local input.
	EventValidationError EventType = "validation_error"
	// EventStorageError records a storage-tier fallback or failure.
	EventStorageError EventType = "storage_error"
	// EventEncryptionError records a seal-boundary failure.
	EventEncryptionError EventType = "encryption_error"
	// EventConcurrentRequestBlocked records a duplicate in-flight submission.
	EventConcurrentRequestBlocked EventType = "concurrent_request_blocked"
	// EventStateCleanup records an expired-state sweep.
	EventStateCleanup EventType = "state_cleanup"
	// EventConfigUpdated records a runtime policy change.
	EventConfigUpdated EventType = "config_updated"
)

// SecurityEvent is one entry in the audit trail. Identifiers never appear in
// plaintext; IdentifierDigest carries the deterministic one-way digest.
type SecurityEvent struct {
	ID               string            `json:"id"`
	Timestamp        time.Time         `json:"timestamp"`
	EventType        EventType         `json:"event_type"`
	Severity         Severity          `json:"severity"`
	IdentifierDigest string            `json:"identifier_digest,omitempty"`
	SessionID        string            `json:"session_id,omitempty"`
	Component        string            `json:"component,omitempty"`
	Success          bool              `json:"success"`
	Message          string            `json:"message,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// EventSink receives security events from the dispatcher. Implementations
// must tolerate concurrent Emit calls.
type EventSink interface {
	Emit(ctx context.Context, event SecurityEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit implements [EventSink].
func (NoOpSink) Emit(context.Context, SecurityEvent) {}

// ChannelSink forwards events to a buffered channel, for consumers that want
// to process the trail themselves.
type ChannelSink struct {
	events chan SecurityEvent
}

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan SecurityEvent, buffer),
	}
}

// Emit implements [EventSink].
func (s *ChannelSink) Emit(ctx context.Context, event SecurityEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receiving side of the sink.
func (s *ChannelSink) Events() <-chan SecurityEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per event to an io.Writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink returns a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit implements [EventSink].
func (s *JSONWriterSink) Emit(ctx context.Context, event SecurityEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
