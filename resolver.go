package authstate

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Resolver turns a user id into a (Profile, Role) pair using an ordered
// fallback chain of remote lookups. Resolve never returns an error: every
// step failure is treated as inconclusive and falls through to the next
// strategy, so the engine keeps moving even on partial backend failure.
//
// Resolution order, first conclusive result wins:
//  1. reserved-identity allow list (bypasses all remote calls)
//  2. privileged server-side role lookup
//  3. direct role-assignment row
//  4. profile admin flag, mapped to RoleAdmin
//  5. bootstrap: the first profile ever created gets RoleSuperAdmin
//  6. default RoleUser
type Resolver struct {
	directory Directory
	reserved  map[string]struct{}
	logger    Logger
}

// NewResolver creates a resolver backed by the given directory
func NewResolver(directory Directory) *Resolver {
	return &Resolver{
		directory: directory,
		reserved:  map[string]struct{}{},
		logger:    defLogger{},
	}
}

// WithLogger overrides the resolver logger
func (r *Resolver) WithLogger(logger Logger) *Resolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithReservedIdentities registers administrator emails that resolve to
// RoleSuperAdmin unconditionally. Matching is case-insensitive.
func (r *Resolver) WithReservedIdentities(emails ...string) *Resolver {
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		r.reserved[email] = struct{}{}
	}
	return r
}

// IsReserved reports whether the email is on the reserved-identity list
func (r *Resolver) IsReserved(email string) bool {
	_, ok := r.reserved[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Resolve fetches the profile and resolves the role for the given user. The
// profile fetch runs concurrently with the role chain since they hit
// independent backend surfaces.
func (r *Resolver) Resolve(ctx context.Context, user *User) (*Profile, Role) {
	if user == nil || user.ID == uuid.Nil {
		return nil, RoleUser
	}

	if r.IsReserved(user.Email) {
		profile := SynthesizeProfile(user)
		profile.IsAdmin = true
		return profile, RoleSuperAdmin
	}

	profCh := make(chan *Profile, 1)
	go func() {
		profCh <- r.fetchProfile(ctx, user)
	}()

	role, conclusive := r.lookupRole(ctx, user.ID)
	profile := <-profCh

	if !conclusive && profile != nil && profile.IsAdmin {
		role, conclusive = RoleAdmin, true
	}

	if !conclusive {
		role, conclusive = r.bootstrapRole(ctx, user.ID)
	}

	if !conclusive {
		role = RoleUser
	}

	return profile, role
}

// lookupRole runs the remote strategies: privileged lookup first, then the
// role-assignment table.
func (r *Resolver) lookupRole(ctx context.Context, userID uuid.UUID) (Role, bool) {
	role, ok, err := r.directory.LookupRoleSafely(ctx, userID)
	if err != nil {
		r.logger.Error("privileged role lookup inconclusive: %s", err)
	} else if ok && role.IsValid() {
		return role, true
	}

	role, err = r.directory.GetRole(ctx, userID)
	if err != nil {
		if IsNotFound(err) {
			r.logger.Debug("no role assignment for user %s", userID)
		} else {
			r.logger.Error("role assignment lookup inconclusive: %s", err)
		}
		return "", false
	}

	if !role.IsValid() {
		r.logger.Error("ignoring unrecognized role value %q for user %s", role, userID)
		return "", false
	}

	return role, true
}

// bootstrapRole applies the first-user rule: when exactly one profile exists
// the system was just bootstrapped and that user becomes superadmin. The
// assignment is persisted so later resolutions take the direct path.
func (r *Resolver) bootstrapRole(ctx context.Context, userID uuid.UUID) (Role, bool) {
	count, err := r.directory.CountProfiles(ctx)
	if err != nil {
		r.logger.Error("profile count inconclusive: %s", err)
		return "", false
	}

	if count != 1 {
		return "", false
	}

	if err := r.directory.UpsertRole(ctx, userID, RoleSuperAdmin); err != nil {
		r.logger.Error("failed to persist bootstrap role for %s: %s", userID, err)
	}

	return RoleSuperAdmin, true
}

// fetchProfile loads the profile row, lazily creating it when missing. Any
// failure yields a synthesized profile so the caller is never left without
// one.
func (r *Resolver) fetchProfile(ctx context.Context, user *User) *Profile {
	profile, err := r.directory.GetProfile(ctx, user.ID)
	if err == nil && profile != nil {
		return profile
	}

	if err != nil && !IsNotFound(err) {
		r.logger.Error("profile fetch failed for %s: %s", user.ID, err)
		return SynthesizeProfile(user)
	}

	created, cerr := r.directory.UpsertProfile(ctx, SynthesizeProfile(user))
	if cerr != nil || created == nil {
		if cerr != nil {
			r.logger.Error("profile create failed for %s: %s", user.ID, cerr)
		}
		return SynthesizeProfile(user)
	}

	return created
}
