package authstate_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-authstate"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockIdentityClient implements authstate.IdentityClient
type MockIdentityClient struct {
	mock.Mock
	events chan authstate.ProviderEvent
}

func NewMockIdentityClient() *MockIdentityClient {
	return &MockIdentityClient{
		events: make(chan authstate.ProviderEvent, 8),
	}
}

func (m *MockIdentityClient) GetSession(ctx context.Context) (*authstate.Session, error) {
	args := m.Called(ctx)
	session, _ := args.Get(0).(*authstate.Session)
	return session, args.Error(1)
}

func (m *MockIdentityClient) RefreshSession(ctx context.Context) (*authstate.Session, error) {
	args := m.Called(ctx)
	session, _ := args.Get(0).(*authstate.Session)
	return session, args.Error(1)
}

func (m *MockIdentityClient) SignInWithPassword(ctx context.Context, email, password string) (*authstate.Session, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*authstate.Session)
	return session, args.Error(1)
}

func (m *MockIdentityClient) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIdentityClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	args := m.Called(ctx, email, redirectTo)
	return args.Error(0)
}

func (m *MockIdentityClient) Events() <-chan authstate.ProviderEvent {
	return m.events
}

// Emit pushes a provider event into the stream consumed by the engine
func (m *MockIdentityClient) Emit(evt authstate.ProviderEvent) {
	m.events <- evt
}

// MockDirectory implements authstate.Directory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) GetProfile(ctx context.Context, userID uuid.UUID) (*authstate.Profile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(*authstate.Profile)
	return profile, args.Error(1)
}

func (m *MockDirectory) UpsertProfile(ctx context.Context, profile *authstate.Profile) (*authstate.Profile, error) {
	args := m.Called(ctx, profile)
	created, _ := args.Get(0).(*authstate.Profile)
	return created, args.Error(1)
}

func (m *MockDirectory) GetRole(ctx context.Context, userID uuid.UUID) (authstate.Role, error) {
	args := m.Called(ctx, userID)
	role, _ := args.Get(0).(authstate.Role)
	return role, args.Error(1)
}

func (m *MockDirectory) UpsertRole(ctx context.Context, userID uuid.UUID, role authstate.Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockDirectory) CountProfiles(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockDirectory) LookupRoleSafely(ctx context.Context, userID uuid.UUID) (authstate.Role, bool, error) {
	args := m.Called(ctx, userID)
	role, _ := args.Get(0).(authstate.Role)
	return role, args.Bool(1), args.Error(2)
}

// MockRealtime implements authstate.Realtime and hands out fake subscriptions
// that record their lifecycle and let tests push role changes by hand
type MockRealtime struct {
	mu   sync.Mutex
	subs []*FakeSubscription
	err  error
}

func (m *MockRealtime) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockRealtime) Subscribe(ctx context.Context, key authstate.SubscriptionKey, handler func(authstate.RoleChange)) (authstate.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	sub := &FakeSubscription{key: key, handler: handler}
	m.subs = append(m.subs, sub)
	return sub, nil
}

func (m *MockRealtime) Subscriptions() []*FakeSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*FakeSubscription{}, m.subs...)
}

func (m *MockRealtime) Last() *FakeSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.subs) == 0 {
		return nil
	}
	return m.subs[len(m.subs)-1]
}

type FakeSubscription struct {
	mu           sync.Mutex
	key          authstate.SubscriptionKey
	handler      func(authstate.RoleChange)
	unsubscribed bool
}

func (f *FakeSubscription) Key() authstate.SubscriptionKey {
	return f.key
}

func (f *FakeSubscription) Unsubscribe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = true
	return nil
}

func (f *FakeSubscription) Unsubscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

// Deliver pushes a role change through the subscription handler
func (f *FakeSubscription) Deliver(change authstate.RoleChange) {
	f.handler(change)
}

// CaptureSink is an ActivitySink that records every event it sees
type CaptureSink struct {
	mu     sync.Mutex
	events []authstate.ActivityEvent
}

func (c *CaptureSink) Record(ctx context.Context, event authstate.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *CaptureSink) Events() []authstate.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]authstate.ActivityEvent{}, c.events...)
}

func (c *CaptureSink) Count(eventType authstate.ActivityEventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, evt := range c.events {
		if evt.EventType == eventType {
			n++
		}
	}
	return n
}

// quietLogger keeps test output clean
type quietLogger struct{}

func (quietLogger) Debug(format string, args ...any) {}
func (quietLogger) Info(format string, args ...any)  {}
func (quietLogger) Error(format string, args ...any) {}

// MockContext mocks router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}
