package authstate

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultRoleLookupFn is the server-side function used for privileged role
// lookups
const DefaultRoleLookupFn = "get_user_role_safe"

// BunDirectory implements Directory on top of a bun database
type BunDirectory struct {
	db           *bun.DB
	profiles     repository.Repository[*Profile]
	roles        repository.Repository[*RoleAssignment]
	roleLookupFn string
	phoneRegion  string
	logger       Logger
}

var _ Directory = (*BunDirectory)(nil)

// NewBunDirectory creates a directory backed by the given database
func NewBunDirectory(db *bun.DB) *BunDirectory {
	profiles := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	roles := repository.NewRepository[*RoleAssignment](db, repository.ModelHandlers[*RoleAssignment]{
		NewRecord: func() *RoleAssignment { return &RoleAssignment{} },
		GetID: func(r *RoleAssignment) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.UserID
		},
		SetID: func(r *RoleAssignment, id uuid.UUID) {
			if r != nil {
				r.UserID = id
			}
		},
	})

	return &BunDirectory{
		db:           db,
		profiles:     profiles,
		roles:        roles,
		roleLookupFn: DefaultRoleLookupFn,
		phoneRegion:  "US",
		logger:       defLogger{},
	}
}

// WithLogger overrides the directory logger
func (d *BunDirectory) WithLogger(logger Logger) *BunDirectory {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// WithRoleLookupFn overrides the privileged lookup function name
func (d *BunDirectory) WithRoleLookupFn(fn string) *BunDirectory {
	if fn != "" {
		d.roleLookupFn = fn
	}
	return d
}

// WithPhoneRegion sets the default region for phone normalization
func (d *BunDirectory) WithPhoneRegion(region string) *BunDirectory {
	if region != "" {
		d.phoneRegion = region
	}
	return d
}

// GetProfile loads the profile row by user id
func (d *BunDirectory) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	record := &Profile{}
	err := d.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"user_id": userID.String()})
		}
		return nil, err
	}

	return record, nil
}

// UpsertProfile fully replaces the profile row, creating it when missing.
// Phone numbers are normalized to E.164 before persisting.
func (d *BunDirectory) UpsertProfile(ctx context.Context, profile *Profile) (*Profile, error) {
	if profile == nil || profile.ID == uuid.Nil {
		return nil, repository.NewRecordNotFound()
	}

	record := profile.Clone()
	record.Phone = d.normalizePhone(record.Phone)
	now := time.Now()
	record.UpdatedAt = &now

	_, err := d.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("email = EXCLUDED.email").
		Set("phone_number = EXCLUDED.phone_number").
		Set("is_admin = EXCLUDED.is_admin").
		Set("mfa_enrolled = EXCLUDED.mfa_enrolled").
		Set("mfa_required = EXCLUDED.mfa_required").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// GetRole loads the role assignment for a user
func (d *BunDirectory) GetRole(ctx context.Context, userID uuid.UUID) (Role, error) {
	record := &RoleAssignment{}
	err := d.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", repository.NewRecordNotFound().
				WithMetadata(map[string]any{"user_id": userID.String()})
		}
		return "", err
	}

	return record.Role, nil
}

// UpsertRole persists a role assignment, replacing any existing one
func (d *BunDirectory) UpsertRole(ctx context.Context, userID uuid.UUID, role Role) error {
	now := time.Now()
	record := &RoleAssignment{
		UserID:    userID,
		Role:      role,
		UpdatedAt: &now,
	}

	_, err := d.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("role = EXCLUDED.role").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// CountProfiles returns the total number of profile rows
func (d *BunDirectory) CountProfiles(ctx context.Context) (int, error) {
	return d.db.NewSelect().Model((*Profile)(nil)).Count(ctx)
}

// LookupRoleSafely calls the privileged role-lookup function. A NULL or
// empty result is a valid "no role" answer.
func (d *BunDirectory) LookupRoleSafely(ctx context.Context, userID uuid.UUID) (Role, bool, error) {
	var result sql.NullString
	err := d.db.NewRaw("SELECT ?(?)", bun.Ident(d.roleLookupFn), userID).Scan(ctx, &result)
	if err != nil {
		return "", false, err
	}

	if !result.Valid || result.String == "" {
		return "", false, nil
	}

	role, ok := ParseRole(result.String)
	if !ok {
		d.logger.Error("privileged lookup returned unrecognized role %q", result.String)
		return "", false, nil
	}

	return role, true, nil
}

// normalizePhone formats the number as E.164 using the configured default
// region. Unparseable values are stored as given.
func (d *BunDirectory) normalizePhone(raw string) string {
	if raw == "" {
		return ""
	}

	num, err := phonenumbers.Parse(raw, d.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		d.logger.Debug("keeping unparseable phone number as-is")
		return raw
	}

	return phonenumbers.Format(num, phonenumbers.E164)
}
