package authstate

import (
	"context"
	"time"
)

// DefaultRefreshInterval is how often the refresher attempts silent renewal
const DefaultRefreshInterval = 15 * time.Minute

// Refresher silently renews the session token on a fixed interval. It only
// ever touches the session: renewal failures are logged and the existing
// session is left untouched, a refresh failure alone never forces sign-out.
type Refresher struct {
	identity IdentityClient
	interval time.Duration
	logger   Logger
	sink     ActivitySink

	hasSession func() bool
	apply      func(*Session)
}

// NewRefresher creates a refresher. hasSession and apply bridge to the owning
// store: the former gates the tick, the latter commits a renewed session.
func NewRefresher(identity IdentityClient, hasSession func() bool, apply func(*Session)) *Refresher {
	return &Refresher{
		identity:   identity,
		interval:   DefaultRefreshInterval,
		logger:     defLogger{},
		sink:       noopActivitySink{},
		hasSession: hasSession,
		apply:      apply,
	}
}

// WithInterval overrides the renewal interval
func (r *Refresher) WithInterval(interval time.Duration) *Refresher {
	if interval > 0 {
		r.interval = interval
	}
	return r
}

// WithLogger overrides the refresher logger
func (r *Refresher) WithLogger(logger Logger) *Refresher {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithActivitySink sets the sink notified on refresh failures
func (r *Refresher) WithActivitySink(sink ActivitySink) *Refresher {
	r.sink = normalizeActivitySink(sink)
	return r
}

// Run ticks until the context is done or the done channel closes
func (r *Refresher) Run(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs a single renewal attempt. No session means no-op.
func (r *Refresher) Tick(ctx context.Context) {
	if r.hasSession != nil && !r.hasSession() {
		return
	}

	session, err := r.identity.RefreshSession(ctx)
	if err != nil {
		r.logger.Error("silent session renewal failed: %s", err)
		if serr := r.sink.Record(ctx, ActivityEvent{
			EventType:  ActivityEventRefreshFailure,
			Metadata:   map[string]any{"error": err.Error()},
			OccurredAt: time.Now(),
		}); serr != nil {
			r.logger.Error("activity sink failure: %s", serr)
		}
		return
	}

	if session == nil {
		r.logger.Error("silent session renewal returned no session")
		return
	}

	if r.apply != nil {
		r.apply(session)
	}
}
