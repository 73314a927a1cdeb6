package authstate

// AuthState is the aggregate snapshot the engine exposes to consumers.
// Snapshots are value copies, mutating one never affects the engine.
type AuthState struct {
	Session     *Session `json:"session,omitempty"`
	User        *User    `json:"user,omitempty"`
	Profile     *Profile `json:"profile,omitempty"`
	Role        Role     `json:"role,omitempty"`
	Loading     bool     `json:"loading,omitempty"`
	Initialized bool     `json:"initialized,omitempty"`
	// Degraded is set when initialization completed via the liveness timeout
	// rather than a processed auth event
	Degraded bool `json:"degraded,omitempty"`
}

// Authenticated reports whether a session and user are present
func (s AuthState) Authenticated() bool {
	return s.Session != nil && s.User != nil
}

// IsAdmin reports administrative access, either through the resolved role or
// the profile admin flag
func (s AuthState) IsAdmin() bool {
	if s.Role == RoleAdmin || s.Role == RoleSuperAdmin {
		return true
	}
	return s.Profile != nil && s.Profile.IsAdmin
}

// IsSuperAdmin reports top-level access. A profile flagged admin combined with
// an admin role is promoted to superadmin semantics.
func (s AuthState) IsSuperAdmin() bool {
	if s.Role == RoleSuperAdmin {
		return true
	}
	return s.Profile != nil && s.Profile.IsAdmin && s.Role == RoleAdmin
}

// RequiresMFA reports whether the user must enroll a second factor before
// proceeding
func (s AuthState) RequiresMFA() bool {
	return s.Profile != nil && s.Profile.MFARequired && !s.Profile.MFAEnrolled
}
