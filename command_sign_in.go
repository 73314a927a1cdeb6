package authstate

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type SignInMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (e SignInMessage) Type() string { return "auth.sign_in" }

type SignInHandler struct {
	store Store
}

func NewSignInHandler(store Store) *SignInHandler {
	return &SignInHandler{store: store}
}

func (h *SignInHandler) Execute(ctx context.Context, event SignInMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during sign in",
		)
	default:
		return h.store.SignIn(ctx, event.Email, event.Password)
	}
}

type SignOutMessage struct{}

func (e SignOutMessage) Type() string { return "auth.sign_out" }

type SignOutHandler struct {
	store Store
}

func NewSignOutHandler(store Store) *SignOutHandler {
	return &SignOutHandler{store: store}
}

func (h *SignOutHandler) Execute(ctx context.Context, event SignOutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during sign out",
		)
	default:
		return h.store.SignOut(ctx)
	}
}
