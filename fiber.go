package authstate

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// StateLocalsKey is where fiber middleware stores the AuthState snapshot
const StateLocalsKey = "auth_state"

// SignInPayload is the request body for password sign-in
type SignInPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate checks the payload
func (p SignInPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(1, 100)),
	)
}

// ResetPasswordPayload is the request body for password recovery
type ResetPasswordPayload struct {
	Email string `json:"email" form:"email"`
}

// Validate checks the payload
func (p ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
	)
}

// FiberRequireInitialized gates fiber routes on engine readiness and stashes
// a snapshot in locals
func FiberRequireInitialized(store StateProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		select {
		case <-store.Ready():
		case <-c.Context().Done():
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}
		c.Locals(StateLocalsKey, store.State())
		return c.Next()
	}
}

// FiberRequireRole gates fiber routes on an authenticated user with at least
// minRole
func FiberRequireRole(store StateProvider, minRole Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		select {
		case <-store.Ready():
		case <-c.Context().Done():
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		state := store.State()
		if !state.Authenticated() {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		if !state.Role.IsAtLeast(minRole) {
			return c.SendStatus(fiber.StatusForbidden)
		}

		c.Locals(StateLocalsKey, state)
		return c.Next()
	}
}

// FiberStateFromLocals retrieves the snapshot stored by the middleware
func FiberStateFromLocals(c *fiber.Ctx) (AuthState, bool) {
	state, ok := c.Locals(StateLocalsKey).(AuthState)
	return state, ok
}

// MakeSignInHandler builds a fiber handler that signs in through the store
func MakeSignInHandler(store Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := SignInPayload{}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed payload"})
		}
		if err := payload.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		if err := store.SignIn(c.Context(), payload.Email, payload.Password); err != nil {
			var richErr *errors.Error
			if errors.As(err, &richErr) && richErr.Category == errors.CategoryAuth {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": richErr.Message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sign in failed"})
		}

		return c.JSON(store.State())
	}
}

// MakeSignOutHandler builds a fiber handler that signs out through the store
func MakeSignOutHandler(store Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.SignOut(c.Context()); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sign out failed"})
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// MakeResetPasswordHandler builds a fiber handler for password recovery
func MakeResetPasswordHandler(store Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := ResetPasswordPayload{}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed payload"})
		}
		if err := payload.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		if err := store.ResetPassword(c.Context(), payload.Email); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reset request failed"})
		}

		return c.SendStatus(fiber.StatusAccepted)
	}
}
