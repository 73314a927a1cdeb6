package authstate

import (
	"context"
)

var stateCtxKey = &contextKey{"auth_state"}

type contextKey struct {
	name string
}

// WithContext sets the AuthState snapshot in the given context
func WithContext(r context.Context, state AuthState) context.Context {
	return context.WithValue(r, stateCtxKey, state)
}

// FromContext finds the AuthState snapshot from the context
func FromContext(ctx context.Context) (AuthState, bool) {
	raw, ok := ctx.Value(stateCtxKey).(AuthState)
	return raw, ok
}
