package loginguard

import "context"

type sessionIDContextKey struct{}
type componentContextKey struct{}

// WithSessionID attaches a UI session correlation ID to ctx. The Engine
// stamps it onto every security event emitted for calls carrying this
// context, so a support trail can follow one user session across attempts.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey{}, sessionID)
}

// WithComponent attaches the name of the calling UI component to ctx for
// event metadata (for example "login-form" or "unlock-dialog").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentContextKey{}, component)
}

func sessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	sessionID, _ := ctx.Value(sessionIDContextKey{}).(string)
	return sessionID
}

func componentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	component, _ := ctx.Value(componentContextKey{}).(string)
	return component
}
