package authstate

import (
	"context"
	"errors"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultMaxCheckFailures is the consecutive session-check failure threshold
// that forces a local sign-out.
const DefaultMaxCheckFailures = 3

// Manager is the session store: the aggregate holding the current
// Session/User/Profile/Role and exposing them, plus action methods, to the
// hosting application. A Manager is owned and lifecycle-managed by the
// application root and injected into consumers through the Store interface,
// it is not ambient global state.
type Manager struct {
	identity  IdentityClient
	directory Directory
	realtime  Realtime
	resolver  *Resolver
	guard     *InitGuard
	refresher *Refresher
	logger    Logger
	sink      ActivitySink
	inspector *TokenInspector

	refreshInterval  time.Duration
	initTimeout      time.Duration
	maxCheckFailures int
	roleTopic        string
	passwordRedirect string

	ready     chan struct{}
	readyOnce sync.Once

	mu            sync.Mutex
	session       *Session
	user          *User
	profile       *Profile
	role          Role
	loading       bool
	resolveGen    uint64
	inFlight      map[uuid.UUID]bool
	checkFailures int
	subscriber    *roleSubscriber
	watchers      map[uint64]func(AuthState)
	watcherSeq    uint64
	started       bool
	done          chan struct{}
	wg            sync.WaitGroup
}

var _ Store = (*Manager)(nil)

// New creates a Manager bound to an identity provider and a relational
// directory. Call Start to begin synchronizing.
func New(identity IdentityClient, directory Directory) *Manager {
	return &Manager{
		identity:         identity,
		directory:        directory,
		resolver:         NewResolver(directory),
		logger:           defLogger{},
		sink:             noopActivitySink{},
		refreshInterval:  DefaultRefreshInterval,
		initTimeout:      DefaultInitTimeout,
		maxCheckFailures: DefaultMaxCheckFailures,
		roleTopic:        DefaultRoleTopic,
		role:             RoleUser,
		ready:            make(chan struct{}),
		inFlight:         map[uuid.UUID]bool{},
		watchers:         map[uint64]func(AuthState){},
	}
}

// WithLogger overrides the manager logger
func (m *Manager) WithLogger(logger Logger) *Manager {
	if logger != nil {
		m.logger = logger
		m.resolver.WithLogger(logger)
	}
	return m
}

// WithActivitySink configures an ActivitySink for emitting auth events
func (m *Manager) WithActivitySink(sink ActivitySink) *Manager {
	m.sink = normalizeActivitySink(sink)
	return m
}

// WithRealtime enables push-based role-change subscriptions
func (m *Manager) WithRealtime(realtime Realtime) *Manager {
	m.realtime = realtime
	return m
}

// WithTokenInspector lets the manager derive user identity and expiry from
// raw access tokens without a provider round-trip
func (m *Manager) WithTokenInspector(inspector *TokenInspector) *Manager {
	m.inspector = inspector
	return m
}

// WithReservedIdentities registers administrator emails resolved to
// RoleSuperAdmin unconditionally
func (m *Manager) WithReservedIdentities(emails ...string) *Manager {
	m.resolver.WithReservedIdentities(emails...)
	return m
}

// WithRefreshInterval overrides the silent renewal interval
func (m *Manager) WithRefreshInterval(interval time.Duration) *Manager {
	if interval > 0 {
		m.refreshInterval = interval
	}
	return m
}

// WithInitTimeout overrides the liveness bound on time-to-ready
func (m *Manager) WithInitTimeout(timeout time.Duration) *Manager {
	if timeout > 0 {
		m.initTimeout = timeout
	}
	return m
}

// WithMaxCheckFailures overrides the forced sign-out threshold
func (m *Manager) WithMaxCheckFailures(max int) *Manager {
	if max > 0 {
		m.maxCheckFailures = max
	}
	return m
}

// WithConfig applies engine options from a Config in one call
func (m *Manager) WithConfig(cfg Config) *Manager {
	if cfg == nil {
		return m
	}
	m.WithRefreshInterval(cfg.GetRefreshInterval())
	m.WithInitTimeout(cfg.GetInitTimeout())
	m.WithMaxCheckFailures(cfg.GetMaxCheckFailures())
	m.WithReservedIdentities(cfg.GetReservedIdentities()...)
	if topic := cfg.GetRoleTopic(); topic != "" {
		m.roleTopic = topic
	}
	m.passwordRedirect = cfg.GetPasswordRedirectURL()
	return m
}

// Start runs the initial session check and launches the event loop and the
// background refresher. The context governs all background work.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("auth state engine already started")
	}
	m.started = true
	m.done = make(chan struct{})
	m.guard = NewInitGuard(m.initTimeout)
	m.subscriber = newRoleSubscriber(m.realtime, m.roleTopic, m.logger)
	m.refresher = NewRefresher(m.identity, m.hasSession, func(s *Session) {
		m.applyRefreshedSession(ctx, s)
	}).
		WithInterval(m.refreshInterval).
		WithLogger(m.logger).
		WithActivitySink(m.sink)
	done := m.done
	m.mu.Unlock()

	m.guard.Begin()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.CheckSession(ctx); err != nil {
			m.logger.Error("initial session check: %s", err)
		}
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.eventLoop(ctx, done)
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refresher.Run(ctx, done)
	}()

	guard := m.guard
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-guard.Ready():
			m.readyOnce.Do(func() { close(m.ready) })
		case <-done:
		}
	}()

	return nil
}

// Close stops background work. Pending resolutions run to harmless
// completion, their results are discarded.
func (m *Manager) Close() error {
	m.mu.Lock()
	if !m.started || m.done == nil {
		m.mu.Unlock()
		return nil
	}
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	subscriber := m.subscriber
	m.mu.Unlock()

	if subscriber != nil {
		subscriber.Close(context.Background())
	}
	if m.guard != nil {
		m.guard.Stop()
	}
	m.wg.Wait()
	return nil
}

// Ready returns a channel closed once a started engine reaches its terminal
// ready state, either through a processed auth event or the liveness timeout.
// Before Start the channel stays open: an unstarted engine is never ready.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// State returns a point-in-time snapshot of the auth aggregate
func (m *Manager) State() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() AuthState {
	state := AuthState{
		Session: m.session.Clone(),
		User:    m.user.Clone(),
		Profile: m.profile.Clone(),
		Role:    m.role,
		Loading: m.loading,
	}
	if state.Role == "" {
		state.Role = RoleUser
	}
	if m.guard != nil {
		state.Initialized = m.guard.Initialized()
		state.Degraded = m.guard.TimedOut()
	}
	return state
}

// Watch registers a callback invoked with a fresh snapshot after every state
// change. The returned cancel removes the watcher.
func (m *Manager) Watch(fn func(AuthState)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.watcherSeq++
	id := m.watcherSeq
	m.watchers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}
}

// SignIn exchanges credentials for a session and begins resolution. Bad
// credentials surface as ErrInvalidCredentials.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid email")
	}
	if err := validation.Validate(password, validation.Required); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "password is required")
	}

	session, err := m.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.logger.Error("sign in rejected for %s: %s", email, err)
		return ErrInvalidCredentials
	}

	m.resetCheckFailures()
	m.applySession(ctx, session, EventSignedIn)
	return nil
}

// SignOut invalidates the provider session and clears local state. Local
// state is cleared even when the provider call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.identity.SignOut(ctx)
	m.clearState(ctx, EventSignedOut)

	if err != nil {
		m.logger.Error("provider sign out failed: %s", err)
		return goerrors.Wrap(err, goerrors.CategoryAuth, "provider sign out failed").
			WithTextCode(textCodeSignOutFailed)
	}
	return nil
}

// ResetPassword starts the provider's password recovery flow
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid email")
	}

	if err := m.identity.ResetPasswordForEmail(ctx, email, m.passwordRedirect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "password reset request failed")
	}
	return nil
}

// CheckSession validates the current session against the provider. A failed
// check triggers one renewal attempt; when both fail the consecutive-failure
// counter advances and, at the threshold, the engine force-signs-out locally
// and returns ErrSessionCheckFailed. A definite "no session" answer is a
// successful negative check.
func (m *Manager) CheckSession(ctx context.Context) error {
	session, err := m.identity.GetSession(ctx)
	if err != nil && IsNotFound(err) {
		m.resetCheckFailures()
		m.clearState(ctx, EventSignedOut)
		return nil
	}

	if err != nil {
		m.logger.Debug("session check failed, attempting renewal: %s", err)
		session, err = m.identity.RefreshSession(ctx)
	}

	if err != nil {
		return m.recordCheckFailure(ctx, err)
	}

	m.resetCheckFailures()
	m.applySession(ctx, session, EventSignedIn)
	return nil
}

func (m *Manager) recordCheckFailure(ctx context.Context, cause error) error {
	m.mu.Lock()
	m.checkFailures++
	failures := m.checkFailures
	threshold := m.maxCheckFailures
	m.mu.Unlock()

	m.logger.Error("session check failure %d/%d: %s", failures, threshold, cause)

	if failures < threshold {
		return goerrors.Wrap(cause, goerrors.CategoryOperation, "session check failed")
	}

	m.resetCheckFailures()
	m.clearState(ctx, EventSignedOut)
	m.record(ctx, ActivityEvent{
		EventType:  ActivityEventHardFailure,
		Metadata:   map[string]any{"error": cause.Error(), "failures": failures},
		OccurredAt: time.Now(),
	})
	return ErrSessionCheckFailed
}

func (m *Manager) resetCheckFailures() {
	m.mu.Lock()
	m.checkFailures = 0
	m.mu.Unlock()
}

func (m *Manager) hasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

func (m *Manager) eventLoop(ctx context.Context, done <-chan struct{}) {
	events := m.identity.Events()
	if events == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			m.handleProviderEvent(ctx, evt)
		}
	}
}

func (m *Manager) handleProviderEvent(ctx context.Context, evt ProviderEvent) {
	switch evt.Event() {
	case EventSignedIn, EventTokenRefreshed:
		m.applySession(ctx, evt.Session, evt.Event())
	case EventSignedOut, EventUserDeleted:
		m.clearState(ctx, evt.Event())
	default:
		m.logger.Debug("ignoring provider event %q", evt.Type)
	}
}

// applySession commits a new session/user pair and triggers resolution,
// unless a resolution for that user id is already in flight (concurrent
// triggers for the same id are dropped, not queued).
func (m *Manager) applySession(ctx context.Context, session *Session, evt AuthEvent) {
	if session == nil {
		m.logger.Debug("ignoring %s event without session", evt)
		return
	}

	user := m.userFromSession(session)
	if user == nil {
		m.logger.Error("ignoring %s event: session carries no identifiable user", evt)
		return
	}

	m.mu.Lock()
	userChanged := m.user == nil || m.user.ID != user.ID
	m.session = session.Clone()
	m.user = user.Clone()

	if userChanged {
		m.resolveGen++
		m.profile = nil
		m.role = RoleUser
		m.loading = true
	}

	spawn := false
	var gen uint64
	if !m.inFlight[user.ID] {
		m.inFlight[user.ID] = true
		gen = m.resolveGen
		spawn = true
		m.loading = true
	}
	subscriber := m.subscriber
	m.mu.Unlock()

	m.record(ctx, ActivityEvent{
		EventType:  activityForEvent(evt),
		UserID:     user.ID.String(),
		OccurredAt: time.Now(),
	})
	m.notify()

	// the broker round-trip runs outside the lock, state reads and
	// deliveries must not stall on network I/O; the subscription is bound
	// before resolution starts so no role change slips between the two
	if userChanged && subscriber != nil {
		subscriber.Rebind(ctx, user.ID, m.onRoleChange)
	}

	if spawn {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			profile, role := m.resolver.Resolve(ctx, user)
			m.commitResolution(ctx, user, gen, profile, role)
		}()
	}
}

// applyRefreshedSession swaps the session token/expiry from a silent renewal
// without touching profile or role
func (m *Manager) applyRefreshedSession(ctx context.Context, session *Session) {
	if session == nil {
		return
	}

	user := session.User

	m.mu.Lock()
	if m.session == nil || m.user == nil {
		// session was torn down while renewal was in flight
		m.mu.Unlock()
		return
	}
	if user != nil && m.user.ID != user.ID {
		// session changed owner mid-renewal, the result no longer applies
		m.mu.Unlock()
		return
	}
	renewed := session.Clone()
	if renewed.User == nil {
		renewed.User = m.user.Clone()
	}
	userID := m.user.ID
	m.session = renewed
	m.mu.Unlock()

	m.record(ctx, ActivityEvent{
		EventType:  ActivityEventTokenRefreshed,
		UserID:     userID.String(),
		OccurredAt: time.Now(),
	})
	m.notify()
}

// commitResolution applies a resolver result if it is still current: the
// captured generation must match and the user must not have changed. Stale
// results are discarded (last-applicable-wins).
func (m *Manager) commitResolution(ctx context.Context, user *User, gen uint64, profile *Profile, role Role) {
	m.mu.Lock()
	delete(m.inFlight, user.ID)

	if gen != m.resolveGen || m.user == nil || m.user.ID != user.ID {
		m.mu.Unlock()
		m.logger.Debug("discarding stale resolution for user %s", user.ID)
		return
	}

	m.profile = profile
	m.role = role
	m.loading = false
	m.mu.Unlock()

	if m.guard != nil {
		m.guard.Signal()
	}

	m.record(ctx, ActivityEvent{
		EventType:  ActivityEventRoleResolved,
		UserID:     user.ID.String(),
		Role:       role,
		OccurredAt: time.Now(),
	})
	m.notify()
}

// clearState resets the aggregate to signed-out atomically
func (m *Manager) clearState(ctx context.Context, evt AuthEvent) {
	m.mu.Lock()
	m.session = nil
	m.user = nil
	m.profile = nil
	m.role = RoleUser
	m.loading = false
	m.resolveGen++
	// orphaned resolutions are already stale by generation, their in-flight
	// entries must not keep the next sign-in from spawning a fresh one
	clear(m.inFlight)
	subscriber := m.subscriber
	m.mu.Unlock()

	if subscriber != nil {
		subscriber.Rebind(ctx, uuid.Nil, m.onRoleChange)
	}

	if m.guard != nil {
		m.guard.Signal()
	}

	m.record(ctx, ActivityEvent{
		EventType:  activityForEvent(evt),
		OccurredAt: time.Now(),
	})
	m.notify()
}

// onRoleChange handles push notifications: the delivery must come from the
// current subscription epoch and match the current user, then the new role
// overwrites the resolved one directly, with no re-run of the chain
func (m *Manager) onRoleChange(epoch uint64, change RoleChange) {
	m.mu.Lock()
	if m.subscriber == nil || m.subscriber.CurrentEpoch() != epoch {
		m.mu.Unlock()
		m.logger.Debug("dropping role change from stale subscription")
		return
	}
	if m.user == nil || m.user.ID != change.UserID {
		m.mu.Unlock()
		m.logger.Debug("dropping role change for non-current user %s", change.UserID)
		return
	}
	if !change.Role.IsValid() {
		m.mu.Unlock()
		m.logger.Error("dropping role change with invalid role %q", change.Role)
		return
	}
	m.role = change.Role
	m.mu.Unlock()

	m.record(context.Background(), ActivityEvent{
		EventType:  ActivityEventRoleChanged,
		UserID:     change.UserID.String(),
		Role:       change.Role,
		OccurredAt: time.Now(),
	})
	m.notify()
}

// userFromSession extracts the user carried by the session, falling back to
// token inspection when the provider did not inline it
func (m *Manager) userFromSession(session *Session) *User {
	if session.User != nil {
		return session.User
	}
	if m.inspector == nil || session.AccessToken == "" {
		return nil
	}

	info, err := m.inspector.Inspect(session.AccessToken)
	if err != nil {
		m.logger.Error("access token inspection failed: %s", err)
		return nil
	}
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = info.ExpiresAt
	}
	return &User{ID: info.UserID, Email: info.Email}
}

func (m *Manager) record(ctx context.Context, event ActivityEvent) {
	if err := m.sink.Record(ctx, event); err != nil {
		m.logger.Error("activity sink failure: %s", err)
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	state := m.snapshotLocked()
	fns := make([]func(AuthState), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func activityForEvent(evt AuthEvent) ActivityEventType {
	switch evt {
	case EventTokenRefreshed:
		return ActivityEventTokenRefreshed
	case EventSignedOut, EventUserDeleted:
		return ActivityEventSignedOut
	default:
		return ActivityEventSignedIn
	}
}
