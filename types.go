package authstate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// IdentityClient is the outbound surface of the remote identity provider.
// Implementations own credential validation entirely, the engine only reacts
// to their results.
type IdentityClient interface {
	// GetSession returns the current session or an error when no valid
	// session exists or the provider is unreachable
	GetSession(ctx context.Context) (*Session, error)

	// RefreshSession silently renews the current session
	RefreshSession(ctx context.Context) (*Session, error)

	// SignInWithPassword exchanges credentials for a session
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// SignOut invalidates the current session on the provider side
	SignOut(ctx context.Context) error

	// ResetPasswordForEmail starts the provider's password recovery flow
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error

	// Events exposes the provider's push change stream. The channel is closed
	// when the client shuts down.
	Events() <-chan ProviderEvent
}

// Directory is the relational backend holding profiles and role assignments.
// Row-level authorization is enforced by the backend itself.
type Directory interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpsertProfile(ctx context.Context, profile *Profile) (*Profile, error)
	GetRole(ctx context.Context, userID uuid.UUID) (Role, error)
	UpsertRole(ctx context.Context, userID uuid.UUID, role Role) error
	CountProfiles(ctx context.Context) (int, error)

	// LookupRoleSafely calls the privileged server-side role lookup. The
	// boolean reports whether the lookup produced a definite role; a false
	// with nil error is a valid "no role" answer.
	LookupRoleSafely(ctx context.Context, userID uuid.UUID) (Role, bool, error)
}

// RoleChange is a push notification carrying a new role value for a user
type RoleChange struct {
	UserID uuid.UUID
	Role   Role
}

// Realtime maintains push-channel subscriptions against the backend
type Realtime interface {
	Subscribe(ctx context.Context, key SubscriptionKey, handler func(RoleChange)) (Subscription, error)
}

// Subscription is an active push-channel binding
type Subscription interface {
	Key() SubscriptionKey
	Unsubscribe(ctx context.Context) error
}

// Store is the contract the engine exposes to the hosting application.
// Consumers must treat State().Initialized == false as "do not make access
// decisions yet".
type Store interface {
	State() AuthState
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	CheckSession(ctx context.Context) error
	Ready() <-chan struct{}
	Watch(fn func(AuthState)) (cancel func())
}

// Config holds engine options
type Config interface {
	GetRefreshInterval() time.Duration
	GetInitTimeout() time.Duration
	GetMaxCheckFailures() int
	GetReservedIdentities() []string
	GetPasswordRedirectURL() string
	GetRoleTopic() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHSTATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHSTATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHSTATE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
