package authstate

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRealtime struct {
	mu   sync.Mutex
	subs []*stubSubscription
}

func (s *stubRealtime) Subscribe(ctx context.Context, key SubscriptionKey, handler func(RoleChange)) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &stubSubscription{key: key, handler: handler}
	s.subs = append(s.subs, sub)
	return sub, nil
}

type stubSubscription struct {
	key          SubscriptionKey
	handler      func(RoleChange)
	unsubscribed bool
}

func (s *stubSubscription) Key() SubscriptionKey { return s.key }

func (s *stubSubscription) Unsubscribe(ctx context.Context) error {
	s.unsubscribed = true
	return nil
}

func TestSubscriptionKey_DeterministicHandle(t *testing.T) {
	userID := uuid.New()

	a := NewRoleSubscriptionKey("user_roles", userID)
	b := NewRoleSubscriptionKey("user_roles", userID)

	assert.Equal(t, a, b)
	assert.Equal(t, a.Channel(), b.Channel())
	assert.Equal(t, a.HandleID(), b.HandleID())
	assert.NotEqual(t, uuid.Nil, a.HandleID())

	other := NewRoleSubscriptionKey("user_roles", uuid.New())
	assert.NotEqual(t, a.HandleID(), other.HandleID())
}

func TestSubscriptionKey_DefaultTopic(t *testing.T) {
	userID := uuid.New()
	key := NewRoleSubscriptionKey("", userID)
	assert.Equal(t, DefaultRoleTopic, key.Topic)
	assert.Equal(t, "user_roles:"+userID.String(), key.Channel())
}

func TestRoleSubscriber_RebindReplacesBinding(t *testing.T) {
	realtime := &stubRealtime{}
	sub := newRoleSubscriber(realtime, "", quietTestLogger{})

	first := uuid.New()
	second := uuid.New()

	epoch1 := sub.Rebind(context.Background(), first, func(uint64, RoleChange) {})
	require.Len(t, realtime.subs, 1)

	epoch2 := sub.Rebind(context.Background(), second, func(uint64, RoleChange) {})
	require.Len(t, realtime.subs, 2)

	assert.Greater(t, epoch2, epoch1)
	assert.True(t, realtime.subs[0].unsubscribed)
	assert.False(t, realtime.subs[1].unsubscribed)
	assert.Equal(t, second.String(), realtime.subs[1].key.EntityID)
}

func TestRoleSubscriber_DeliveryCarriesBindingEpoch(t *testing.T) {
	realtime := &stubRealtime{}
	sub := newRoleSubscriber(realtime, "", quietTestLogger{})

	userID := uuid.New()

	var gotEpoch uint64
	var gotChange RoleChange
	epoch := sub.Rebind(context.Background(), userID, func(e uint64, c RoleChange) {
		gotEpoch = e
		gotChange = c
	})

	stale := realtime.subs[0]
	sub.Rebind(context.Background(), userID, func(e uint64, c RoleChange) {
		gotEpoch = e
		gotChange = c
	})

	// a delivery racing the rebind still presents the old epoch
	stale.handler(RoleChange{UserID: userID, Role: RoleAdmin})
	assert.Equal(t, epoch, gotEpoch)
	assert.NotEqual(t, sub.CurrentEpoch(), gotEpoch)

	realtime.subs[1].handler(RoleChange{UserID: userID, Role: RoleOperator})
	assert.Equal(t, sub.CurrentEpoch(), gotEpoch)
	assert.Equal(t, RoleOperator, gotChange.Role)
}

func TestRoleSubscriber_NilUserTearsDown(t *testing.T) {
	realtime := &stubRealtime{}
	sub := newRoleSubscriber(realtime, "", quietTestLogger{})

	sub.Rebind(context.Background(), uuid.New(), func(uint64, RoleChange) {})
	require.Len(t, realtime.subs, 1)

	sub.Rebind(context.Background(), uuid.Nil, func(uint64, RoleChange) {})
	assert.True(t, realtime.subs[0].unsubscribed)
	assert.Len(t, realtime.subs, 1)
}

func TestRoleSubscriber_NoRealtimeIsSafe(t *testing.T) {
	sub := newRoleSubscriber(nil, "", quietTestLogger{})

	epoch := sub.Rebind(context.Background(), uuid.New(), func(uint64, RoleChange) {})
	assert.NotZero(t, epoch)
	sub.Close(context.Background())
}

type quietTestLogger struct{}

func (quietTestLogger) Debug(format string, args ...any) {}
func (quietTestLogger) Info(format string, args ...any)  {}
func (quietTestLogger) Error(format string, args ...any) {}
