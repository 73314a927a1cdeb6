package authstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// DefaultRoleTopic is the push-channel topic carrying role changes
const DefaultRoleTopic = "user_roles"

// SubscriptionKey identifies a push-channel binding deterministically: the
// same (topic, entity) pair always yields the same handle, so rebinding is
// idempotent instead of minting a fresh channel name per bind.
type SubscriptionKey struct {
	Topic    string
	EntityID string
}

// NewRoleSubscriptionKey builds the key for a user's role-change channel
func NewRoleSubscriptionKey(topic string, userID uuid.UUID) SubscriptionKey {
	if topic == "" {
		topic = DefaultRoleTopic
	}
	return SubscriptionKey{Topic: topic, EntityID: userID.String()}
}

// Channel returns the wire-level channel name for this key
func (k SubscriptionKey) Channel() string {
	return fmt.Sprintf("%s:%s", k.Topic, k.EntityID)
}

// HandleID derives a stable UUID handle from the key
func (k SubscriptionKey) HandleID() uuid.UUID {
	if id, err := hashid.NewUUID(k.Channel()); err == nil {
		return id
	}
	return uuid.Nil
}

// roleSubscriber owns the engine's single role-change subscription. On every
// user change it unsubscribes the previous binding before creating a new one,
// and stamps each binding with an epoch so deliveries racing a rebind are
// discarded.
type roleSubscriber struct {
	realtime Realtime
	topic    string
	logger   Logger

	mu    sync.Mutex
	epoch uint64
	sub   Subscription
}

func newRoleSubscriber(realtime Realtime, topic string, logger Logger) *roleSubscriber {
	if topic == "" {
		topic = DefaultRoleTopic
	}
	if logger == nil {
		logger = defLogger{}
	}
	return &roleSubscriber{
		realtime: realtime,
		topic:    topic,
		logger:   logger,
	}
}

// Rebind points the subscription at a new user id. Passing uuid.Nil tears
// down any active binding without creating a new one. The returned epoch
// identifies the new binding; deliveries must present it to be accepted.
// Safe for concurrent use.
func (s *roleSubscriber) Rebind(ctx context.Context, userID uuid.UUID, handler func(epoch uint64, change RoleChange)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	epoch := s.epoch

	if s.sub != nil {
		if err := s.sub.Unsubscribe(ctx); err != nil {
			s.logger.Error("failed to unsubscribe role channel %s: %s", s.sub.Key().Channel(), err)
		}
		s.sub = nil
	}

	if s.realtime == nil || userID == uuid.Nil {
		return epoch
	}

	key := NewRoleSubscriptionKey(s.topic, userID)
	sub, err := s.realtime.Subscribe(ctx, key, func(change RoleChange) {
		handler(epoch, change)
	})
	if err != nil {
		s.logger.Error("failed to subscribe role channel %s: %s", key.Channel(), err)
		return epoch
	}

	s.sub = sub
	s.logger.Debug("role channel bound: %s (handle %s)", key.Channel(), key.HandleID())
	return epoch
}

// CurrentEpoch returns the epoch of the active binding
func (s *roleSubscriber) CurrentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Close tears down any active binding
func (s *roleSubscriber) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		if err := s.sub.Unsubscribe(ctx); err != nil {
			s.logger.Error("failed to unsubscribe role channel on close: %s", err)
		}
		s.sub = nil
	}
	s.epoch++
}
