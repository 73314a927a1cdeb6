package authstate_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-authstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore implements authstate.Store with canned state for handler tests
type stubStore struct {
	state     authstate.AuthState
	ready     chan struct{}
	signInErr error
	resetErr  error
}

func newStubStore(state authstate.AuthState) *stubStore {
	ready := make(chan struct{})
	close(ready)
	return &stubStore{state: state, ready: ready}
}

func (s *stubStore) State() authstate.AuthState { return s.state }

func (s *stubStore) SignIn(ctx context.Context, email, password string) error {
	return s.signInErr
}

func (s *stubStore) SignOut(ctx context.Context) error { return nil }

func (s *stubStore) ResetPassword(ctx context.Context, email string) error {
	return s.resetErr
}

func (s *stubStore) CheckSession(ctx context.Context) error { return nil }

func (s *stubStore) Ready() <-chan struct{} { return s.ready }

func (s *stubStore) Watch(fn func(authstate.AuthState)) func() {
	return func() {}
}

func TestFiberSignInHandler(t *testing.T) {
	store := newStubStore(authedState(authstate.RoleUser))

	app := fiber.New()
	app.Post("/login", authstate.MakeSignInHandler(store))

	req := httptest.NewRequest("POST", "/login",
		strings.NewReader(`{"email":"fib@example.com","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestFiberSignInHandler_BadCredentials(t *testing.T) {
	store := newStubStore(authstate.AuthState{})
	store.signInErr = authstate.ErrInvalidCredentials

	app := fiber.New()
	app.Post("/login", authstate.MakeSignInHandler(store))

	req := httptest.NewRequest("POST", "/login",
		strings.NewReader(`{"email":"fib@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
}

func TestFiberSignInHandler_RejectsInvalidPayload(t *testing.T) {
	store := newStubStore(authstate.AuthState{})

	app := fiber.New()
	app.Post("/login", authstate.MakeSignInHandler(store))

	req := httptest.NewRequest("POST", "/login",
		strings.NewReader(`{"email":"not-an-email","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
}

func TestFiberSignOutHandler(t *testing.T) {
	store := newStubStore(authstate.AuthState{})

	app := fiber.New()
	app.Post("/logout", authstate.MakeSignOutHandler(store))

	res, err := app.Test(httptest.NewRequest("POST", "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, res.StatusCode)
}

func TestFiberResetPasswordHandler(t *testing.T) {
	store := newStubStore(authstate.AuthState{})

	app := fiber.New()
	app.Post("/recover", authstate.MakeResetPasswordHandler(store))

	req := httptest.NewRequest("POST", "/recover",
		strings.NewReader(`{"email":"fib@example.com"}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, res.StatusCode)
}

func TestFiberRequireRole(t *testing.T) {
	admin := newStubStore(authedState(authstate.RoleAdmin))

	app := fiber.New()
	app.Get("/admin", authstate.FiberRequireRole(admin, authstate.RoleAdmin), func(c *fiber.Ctx) error {
		state, ok := authstate.FiberStateFromLocals(c)
		require.True(t, ok)
		return c.SendString(state.Role.String())
	})

	res, err := app.Test(httptest.NewRequest("GET", "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestFiberRequireRole_Rejections(t *testing.T) {
	operator := newStubStore(authedState(authstate.RoleOperator))
	anonymous := newStubStore(authstate.AuthState{Initialized: true})

	app := fiber.New()
	app.Get("/op", authstate.FiberRequireRole(operator, authstate.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/anon", authstate.FiberRequireRole(anonymous, authstate.RoleUser), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	res, err := app.Test(httptest.NewRequest("GET", "/op", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, res.StatusCode)

	res, err = app.Test(httptest.NewRequest("GET", "/anon", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
}

func TestFiberRequireInitialized(t *testing.T) {
	store := newStubStore(authstate.AuthState{Initialized: true})

	app := fiber.New()
	app.Get("/", authstate.FiberRequireInitialized(store), func(c *fiber.Ctx) error {
		_, ok := authstate.FiberStateFromLocals(c)
		require.True(t, ok)
		return c.SendString("ok")
	})

	res, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestSignInPayload_Validate(t *testing.T) {
	valid := authstate.SignInPayload{Email: "pay@example.com", Password: "secret"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, authstate.SignInPayload{Email: "", Password: "secret"}.Validate())
	assert.Error(t, authstate.SignInPayload{Email: "nope", Password: "secret"}.Validate())
	assert.Error(t, authstate.SignInPayload{Email: "pay@example.com", Password: ""}.Validate())
	assert.Error(t, authstate.ResetPasswordPayload{Email: "nope"}.Validate())
}
