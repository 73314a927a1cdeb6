package authstate

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeSessionCheckFailed = "SESSION_CHECK_FAILED"
	textCodeSignOutFailed      = "SIGN_OUT_FAILED"
)

// ErrInvalidCredentials is returned when the provider rejects a sign-in.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionCheckFailed is returned after the consecutive session-check
// failure threshold forced a local sign-out.
var ErrSessionCheckFailed = goerrors.New("session check failed, signed out locally", goerrors.CategoryAuth).
	WithTextCode(textCodeSessionCheckFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotStarted is returned when an operation requires a started engine
var ErrNotStarted = errors.New("auth state engine not started")

// ErrNoSession is returned by providers when no session exists
var ErrNoSession = errors.New("no active session")

// ErrNoEmptyString guards against empty required inputs
var ErrNoEmptyString = errors.New("empty string not allowed")

// IsNotFound reports whether the error is an empty-result negative rather
// than a transport failure. Resolution steps treat both as inconclusive and
// fall through, the distinction only affects log level.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoSession) {
		return true
	}
	if repository.IsRecordNotFound(err) {
		return true
	}
	return goerrors.IsNotFound(err)
}
