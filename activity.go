package account

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignUp            ActivityEventType = "account.signup"
	ActivityEventLoginSuccess      ActivityEventType = "account.login.success"
	ActivityEventLoginFailure      ActivityEventType = "account.login.failure"
	ActivityEventSignOut           ActivityEventType = "account.signout"
	ActivityEventVerificationSent  ActivityEventType = "account.verification.sent"
	ActivityEventEmailVerified     ActivityEventType = "account.verification.completed"
	ActivityEventPasswordResetSent ActivityEventType = "account.password.reset.sent"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType   ActivityEventType
	PrincipalID string
	Metadata    map[string]any
	OccurredAt  time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
