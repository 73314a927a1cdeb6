// Package local implements authstate.IdentityClient with an in-memory
// account store. It is intended for development and integration testing, not
// production use: real deployments point the engine at a hosted identity
// provider.
package local

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-authstate"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatchedHashAndPassword is returned on bad credentials
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password")

// ErrUnknownAccount is returned when no account matches the email
var ErrUnknownAccount = errors.New("unknown account")

const defaultTokenTTL = time.Hour

type account struct {
	id           uuid.UUID
	email        string
	passwordHash string
}

// ResetRequest records a password recovery request for inspection
type ResetRequest struct {
	Email      string
	RedirectTo string
}

// Provider is an in-memory identity provider
type Provider struct {
	mu            sync.Mutex
	accounts      map[string]*account
	session       *authstate.Session
	events        chan authstate.ProviderEvent
	tokenTTL      time.Duration
	now           func() time.Time
	resetRequests []ResetRequest
}

var _ authstate.IdentityClient = (*Provider)(nil)

// New creates an empty provider
func New() *Provider {
	return &Provider{
		accounts: map[string]*account{},
		events:   make(chan authstate.ProviderEvent, 16),
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
	}
}

// WithTokenTTL overrides the issued session lifetime
func (p *Provider) WithTokenTTL(ttl time.Duration) *Provider {
	if ttl > 0 {
		p.tokenTTL = ttl
	}
	return p
}

// WithClock injects a custom clock (useful for tests)
func (p *Provider) WithClock(clock func() time.Time) *Provider {
	if clock != nil {
		p.now = clock
	}
	return p
}

// Register creates an account with a bcrypt password hash
func (p *Provider) Register(email, password string) (uuid.UUID, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return uuid.Nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	acct := &account{
		id:           uuid.New(),
		email:        email,
		passwordHash: hash,
	}

	p.mu.Lock()
	p.accounts[email] = acct
	p.mu.Unlock()

	return acct.id, nil
}

// GetSession returns the current session
func (p *Provider) GetSession(ctx context.Context) (*authstate.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil || p.session.Expired(p.now()) {
		return nil, authstate.ErrNoSession
	}
	return p.session.Clone(), nil
}

// RefreshSession renews the current session token
func (p *Provider) RefreshSession(ctx context.Context) (*authstate.Session, error) {
	p.mu.Lock()
	if p.session == nil {
		p.mu.Unlock()
		return nil, authstate.ErrNoSession
	}

	session := p.mintSessionLocked(p.session.User)
	p.mu.Unlock()

	p.emit(authstate.ProviderEvent{Type: "TOKEN_REFRESHED", Session: session.Clone()})
	return session.Clone(), nil
}

// SignInWithPassword exchanges credentials for a session
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*authstate.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p.mu.Lock()
	acct, ok := p.accounts[email]
	if !ok {
		p.mu.Unlock()
		return nil, ErrUnknownAccount
	}

	if err := ComparePasswordAndHash(password, acct.passwordHash); err != nil {
		p.mu.Unlock()
		return nil, err
	}

	user := &authstate.User{ID: acct.id, Email: acct.email}
	session := p.mintSessionLocked(user)
	p.mu.Unlock()

	p.emit(authstate.ProviderEvent{Type: "SIGNED_IN", Session: session.Clone()})
	return session.Clone(), nil
}

// SignOut destroys the current session
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()

	p.emit(authstate.ProviderEvent{Type: "SIGNED_OUT"})
	return nil
}

// ResetPasswordForEmail records the recovery request
func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]; !ok {
		// mirror hosted providers: do not leak whether the account exists
		return nil
	}
	p.resetRequests = append(p.resetRequests, ResetRequest{Email: email, RedirectTo: redirectTo})
	return nil
}

// ResetRequests returns the recorded recovery requests
func (p *Provider) ResetRequests() []ResetRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ResetRequest{}, p.resetRequests...)
}

// Events exposes the provider's change stream
func (p *Provider) Events() <-chan authstate.ProviderEvent {
	return p.events
}

// ExpireSession force-expires the current session (test helper)
func (p *Provider) ExpireSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		p.session.ExpiresAt = p.now().Add(-time.Minute)
	}
}

func (p *Provider) mintSessionLocked(user *authstate.User) *authstate.Session {
	p.session = &authstate.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    p.now().Add(p.tokenTTL),
		User:         user.Clone(),
	}
	return p.session
}

func (p *Provider) emit(evt authstate.ProviderEvent) {
	select {
	case p.events <- evt:
	default:
		// slow consumer, drop rather than block the provider
	}
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", authstate.ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
