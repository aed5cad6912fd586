package loginguard

import (
	"context"
	"errors"
	"net"
	"time"
)

// Severity ranks security events and classified errors.
type Severity uint8

const (
	// SeverityLow marks routine, expected failures (wrong password, bad input).
	SeverityLow Severity = iota + 1
	// SeverityMedium marks throttling decisions and transient faults.
	SeverityMedium
	// SeverityHigh marks lockouts and storage degradation.
	SeverityHigh
	// SeverityCritical marks failures of the protection mechanism itself.
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// SecurityErrorKind is the closed taxonomy every failure is mapped into.
type SecurityErrorKind string

const (
	// KindRateLimitExceeded covers progressive-delay denials.
	KindRateLimitExceeded SecurityErrorKind = "rate_limit_exceeded"
	// KindAccountLocked covers active lockout windows.
	KindAccountLocked SecurityErrorKind = "account_locked"
	// KindInvalidCredentials covers every provider-side rejection.
	KindInvalidCredentials SecurityErrorKind = "invalid_credentials"
	// KindNetworkError covers transport failures reaching the provider.
	KindNetworkError SecurityErrorKind = "network_error"
	// KindValidationError covers malformed local input.
	KindValidationError SecurityErrorKind = "validation_error"
	// KindStorageError covers state-store degradation.
	KindStorageError SecurityErrorKind = "storage_error"
	// KindEncryptionError covers seal-boundary failures.
	KindEncryptionError SecurityErrorKind = "encryption_error"
	// KindConcurrentRequest covers duplicate in-flight submissions.
	KindConcurrentRequest SecurityErrorKind = "concurrent_request"
	// KindUnknownError is the fallback for anything unrecognized.
	KindUnknownError SecurityErrorKind = "unknown_error"
)

// Classification is the user-safe interpretation of a failure. UserMessage is
// pre-approved copy: it never echoes input, internal error text, or anything
// that would reveal whether an account exists.
type Classification struct {
	Kind        SecurityErrorKind
	UserMessage string
	Severity    Severity
	ShouldRetry bool
	// RetryDelay is a UI hint for when retrying is worthwhile. Zero means
	// "immediately".
	RetryDelay time.Duration
	// AttemptsRemaining is surfaced only by HandleRateLimitError as an
	// intentional courtesy hint. -1 everywhere else.
	AttemptsRemaining int
}

// ErrorContext is the bag of correlation data passed to classifier handlers.
// It feeds the event trail and is never echoed into a UserMessage.
type ErrorContext struct {
	Timestamp        time.Time
	IdentifierDigest string
	SessionID        string
	Component        string
	Action           string
}

// Classifier maps arbitrary failures into the closed taxonomy. It is
// stateless and safe for concurrent use.
type Classifier struct{}

// NewClassifier returns a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

func template(kind SecurityErrorKind) Classification {
	c := Classification{Kind: kind, AttemptsRemaining: -1}
	switch kind {
	case KindRateLimitExceeded:
		c.UserMessage = "Too many sign-in attempts. Please wait a moment and try again."
		c.Severity = SeverityMedium
		c.ShouldRetry = true
	case KindAccountLocked:
		c.UserMessage = "Too many failed attempts. Please try again later."
		c.Severity = SeverityHigh
		c.ShouldRetry = true
	case KindInvalidCredentials:
		c.UserMessage = "Incorrect email or password."
		c.Severity = SeverityLow
		c.ShouldRetry = true
	case KindNetworkError:
		c.UserMessage = "Network problem. Check your connection and try again."
		c.Severity = SeverityMedium
		c.ShouldRetry = true
		c.RetryDelay = 2 * time.Second
	case KindValidationError:
		c.UserMessage = "Please enter a valid email address and password."
		c.Severity = SeverityLow
		c.ShouldRetry = true
	case KindStorageError:
		c.UserMessage = "Something went wrong on this device. You can still sign in."
		c.Severity = SeverityHigh
		c.ShouldRetry = true
	case KindEncryptionError:
		c.UserMessage = "Something went wrong on this device. You can still sign in."
		c.Severity = SeverityCritical
		c.ShouldRetry = true
	case KindConcurrentRequest:
		c.UserMessage = "A sign-in is already in progress."
		c.Severity = SeverityLow
		c.ShouldRetry = true
		c.RetryDelay = time.Second
	default:
		c.Kind = KindUnknownError
		c.UserMessage = "Something went wrong. Please try again."
		c.Severity = SeverityMedium
		c.ShouldRetry = true
	}
	return c
}

// Classify maps err into the taxonomy. Classification inspects error
// identity and transport shape only, never message substrings that could
// encode account existence.
func (c *Classifier) Classify(err error) Classification {
	switch {
	case err == nil:
		return template(KindUnknownError)
	case errors.Is(err, ErrAccountLocked):
		return template(KindAccountLocked)
	case errors.Is(err, ErrLoginRateLimited):
		return template(KindRateLimitExceeded)
	case errors.Is(err, ErrInvalidCredentials):
		return template(KindInvalidCredentials)
	case errors.Is(err, ErrValidation):
		return template(KindValidationError)
	case errors.Is(err, ErrConcurrentLogin):
		return template(KindConcurrentRequest)
	case errors.Is(err, ErrProviderUnavailable):
		return template(KindNetworkError)
	case isNetworkError(err):
		return template(KindNetworkError)
	default:
		return template(KindUnknownError)
	}
}

// HandleAuthError classifies a failure from the sign-in path. ectx is used
// for correlation only.
func (c *Classifier) HandleAuthError(err error, ectx ErrorContext) Classification {
	return c.Classify(err)
}

// HandleRateLimitError produces the generic throttle message. The message is
// identical however close the user is to lockout; only the attempts-remaining
// count is surfaced, as a deliberate UI hint.
func (c *Classifier) HandleRateLimitError(ectx ErrorContext, attemptsRemaining int) Classification {
	out := template(KindRateLimitExceeded)
	if attemptsRemaining < 0 {
		attemptsRemaining = 0
	}
	out.AttemptsRemaining = attemptsRemaining
	return out
}

// HandleValidationError classifies local input failures. It never contacts
// the authentication provider.
func (c *Classifier) HandleValidationError(err error, ectx ErrorContext) Classification {
	return template(KindValidationError)
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
