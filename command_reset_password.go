package authstate

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type ResetPasswordMessage struct {
	Email string `json:"email"`
}

func (e ResetPasswordMessage) Type() string { return "auth.password_reset" }

type ResetPasswordHandler struct {
	store Store
}

func NewResetPasswordHandler(store Store) *ResetPasswordHandler {
	return &ResetPasswordHandler{store: store}
}

func (h *ResetPasswordHandler) Execute(ctx context.Context, event ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset request",
		)
	default:
		return h.store.ResetPassword(ctx, event.Email)
	}
}
