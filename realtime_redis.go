package authstate

import (
	"context"
	"encoding/json"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// roleChangePayload is the wire shape published on role channels
type roleChangePayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// RedisRealtime implements Realtime over redis pub/sub. Each subscription
// key maps to one redis channel; rebinding the same key reuses the same
// channel name, keeping resubscribes idempotent on the broker side.
type RedisRealtime struct {
	client redis.UniversalClient
	logger Logger
}

var _ Realtime = (*RedisRealtime)(nil)

// NewRedisRealtime creates a realtime adapter over the given redis client
func NewRedisRealtime(client redis.UniversalClient) *RedisRealtime {
	return &RedisRealtime{
		client: client,
		logger: defLogger{},
	}
}

// WithLogger overrides the adapter logger
func (r *RedisRealtime) WithLogger(logger Logger) *RedisRealtime {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Subscribe binds a handler to the key's channel. The returned Subscription
// must be unsubscribed before binding the same key again.
func (r *RedisRealtime) Subscribe(ctx context.Context, key SubscriptionKey, handler func(RoleChange)) (Subscription, error) {
	pubsub := r.client.Subscribe(ctx, key.Channel())

	// force the SUBSCRIBE round-trip so a dead broker fails here, not on
	// first delivery
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to subscribe role channel")
	}

	sub := &redisSubscription{
		key:    key,
		pubsub: pubsub,
	}

	go r.dispatch(pubsub, key, handler)

	return sub, nil
}

func (r *RedisRealtime) dispatch(pubsub *redis.PubSub, key SubscriptionKey, handler func(RoleChange)) {
	for msg := range pubsub.Channel() {
		var payload roleChangePayload
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			r.logger.Error("discarding malformed role change on %s: %s", key.Channel(), err)
			continue
		}

		userID, err := uuid.Parse(payload.UserID)
		if err != nil {
			r.logger.Error("discarding role change with bad user id on %s: %s", key.Channel(), err)
			continue
		}

		handler(RoleChange{UserID: userID, Role: Role(payload.Role)})
	}
}

// PublishRoleChange publishes a role change on the channel for the given
// user. Used by administrative tooling and tests.
func (r *RedisRealtime) PublishRoleChange(ctx context.Context, topic string, userID uuid.UUID, role Role) error {
	key := NewRoleSubscriptionKey(topic, userID)
	payload, err := json.Marshal(roleChangePayload{
		UserID: userID.String(),
		Role:   role.String(),
	})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, key.Channel(), payload).Err()
}

type redisSubscription struct {
	key    SubscriptionKey
	pubsub *redis.PubSub

	once sync.Once
	err  error
}

var _ Subscription = (*redisSubscription)(nil)

func (s *redisSubscription) Key() SubscriptionKey {
	return s.key
}

// Unsubscribe closes the underlying pubsub. Idempotent.
func (s *redisSubscription) Unsubscribe(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.pubsub.Close()
	})
	return s.err
}
