package authstate

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignedIn       ActivityEventType = "session.signed_in"
	ActivityEventSignedOut      ActivityEventType = "session.signed_out"
	ActivityEventTokenRefreshed ActivityEventType = "session.token_refreshed"
	ActivityEventRefreshFailure ActivityEventType = "session.refresh_failure"
	ActivityEventHardFailure    ActivityEventType = "auth.hard_failure"
	ActivityEventRoleResolved   ActivityEventType = "role.resolved"
	ActivityEventRoleChanged    ActivityEventType = "role.changed"
)

// ActivityEvent captures audit-friendly information about a state change.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Role       Role
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged, never propagated.
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
