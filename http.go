package authstate

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// StateProvider is the read-only surface route guards consume
type StateProvider interface {
	State() AuthState
	Ready() <-chan struct{}
}

// RouteGuard builds go-router middleware that gates requests on the engine's
// auth state. Guards never make access decisions before the engine reports
// initialized: requests arriving earlier wait, bounded by WaitTimeout.
type RouteGuard struct {
	store        StateProvider
	Logger       Logger
	WaitTimeout  time.Duration
	ErrorHandler func(c router.Context, err error) error
}

// NewRouteGuard creates a guard over the given store
func NewRouteGuard(store StateProvider) *RouteGuard {
	g := &RouteGuard{
		store:       store,
		Logger:      defLogger{},
		WaitTimeout: DefaultInitTimeout,
	}
	g.ErrorHandler = g.defaultErrHandler
	return g
}

// RequireInitialized holds the request until the engine is ready, then
// stashes a state snapshot in the request context
func (g *RouteGuard) RequireInitialized() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if err := g.waitReady(c); err != nil {
				return g.ErrorHandler(c, err)
			}
			c.SetContext(WithContext(c.Context(), g.store.State()))
			return hf(c)
		}
	}
}

// RequireRole additionally demands an authenticated user whose role is at
// least minRole
func (g *RouteGuard) RequireRole(minRole Role) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if err := g.waitReady(c); err != nil {
				return g.ErrorHandler(c, err)
			}

			state := g.store.State()
			if !state.Authenticated() {
				return g.ErrorHandler(c, errors.New("authentication required", errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized))
			}
			if !state.Role.IsAtLeast(minRole) {
				return g.ErrorHandler(c, errors.New("insufficient role", errors.CategoryAuthz).
					WithCode(errors.CodeForbidden).
					WithMetadata(map[string]any{
						"role":     state.Role.String(),
						"required": minRole.String(),
					}))
			}

			c.SetContext(WithContext(c.Context(), state))
			return hf(c)
		}
	}
}

func (g *RouteGuard) waitReady(c router.Context) error {
	select {
	case <-g.store.Ready():
		return nil
	default:
	}

	timer := time.NewTimer(g.WaitTimeout)
	defer timer.Stop()

	select {
	case <-g.store.Ready():
		return nil
	case <-c.Context().Done():
		return c.Context().Err()
	case <-timer.C:
		return errors.New("auth state not initialized", errors.CategoryOperation).
			WithCode(http.StatusServiceUnavailable)
	}
}

func (g *RouteGuard) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	g.Logger.Info("route guard rejection: %s category=%s details=%s",
		richErr.Message, richErr.Category, print.MaybePrettyJSON(richErr.Metadata))

	return c.Status(richErr.Code).SendString(richErr.Message)
}
