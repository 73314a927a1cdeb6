package authstate

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Session is the provider-issued credential proving an authenticated user.
// Sessions are replaced wholesale on every auth event and destroyed on
// sign-out, they are never mutated in place.
type Session struct {
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at,omitempty"`
	User         *User          `json:"user,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Expired reports whether the session expiry has passed
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Clone returns a shallow copy so callers can hold a snapshot safely
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	if s.User != nil {
		dup.User = s.User.Clone()
	}
	return &dup
}

// User identifies the authenticated principal as reported by the identity
// provider. It is never mutated locally.
type User struct {
	ID       uuid.UUID      `json:"id,omitempty"`
	Email    string         `json:"email,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Clone returns a shallow copy of the user
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	dup := *u
	return &dup
}

// DisplayNameFromEmail derives a presentable name from the email local part
func DisplayNameFromEmail(email string) string {
	if !strings.Contains(email, "@") {
		return email
	}
	return strings.Split(email, "@")[0]
}

// Profile is the locally cached descriptive/administrative record for a user,
// distinct from their access role. It is created lazily on first resolution
// and fully replaced (never merged) on each successful fetch.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:pro"`

	ID          uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	DisplayName string     `bun:"display_name" json:"display_name,omitempty"`
	Email       string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone       string     `bun:"phone_number" json:"phone_number,omitempty"`
	IsAdmin     bool       `bun:"is_admin" json:"is_admin,omitempty"`
	MFAEnrolled bool       `bun:"mfa_enrolled" json:"mfa_enrolled,omitempty"`
	MFARequired bool       `bun:"mfa_required" json:"mfa_required,omitempty"`
	CreatedAt   *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt   *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Clone returns a copy of the profile
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	dup := *p
	return &dup
}

// SynthesizeProfile builds a minimal in-memory profile from provider-supplied
// user data. Used when the backing profile row is missing or unreachable so
// consumers are never left without descriptive data.
func SynthesizeProfile(user *User) *Profile {
	if user == nil {
		return nil
	}
	return &Profile{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: DisplayNameFromEmail(user.Email),
	}
}

// RoleAssignment is the persisted role row for a user
type RoleAssignment struct {
	bun.BaseModel `bun:"table:user_roles,alias:rol"`

	UserID    uuid.UUID  `bun:"user_id,pk,nullzero,type:uuid" json:"user_id,omitempty"`
	Role      Role       `bun:"role,notnull" json:"role,omitempty"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
