package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model. Password, persist, restore, and activation
// material is stored one-way only; the model never serializes a secret back
// out in a usable form.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID                uuid.UUID       `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email             string          `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash      string          `bun:"password_hash,notnull" json:"-"`
	Name              string          `bun:"name" json:"name,omitempty"`
	LastName          string          `bun:"last_name" json:"last_name,omitempty"`
	MiddleName        string          `bun:"middle_name" json:"middle_name,omitempty"`
	Phone             string          `bun:"phone" json:"phone,omitempty"`
	PhoneShort        string          `bun:"phone_short" json:"phone_short,omitempty"`
	PersistCode       string          `bun:"persist_code,nullzero" json:"-"`
	ActivationCode    string          `bun:"activation_code,nullzero" json:"-"`
	ResetPasswordCode string          `bun:"reset_password_code,nullzero" json:"-"`
	ResetCodeSentAt   *time.Time      `bun:"reset_code_sent_at,nullzero" json:"-"`
	IsActivated       bool            `bun:"is_activated" json:"is_activated,omitempty"`
	ActivatedAt       *time.Time      `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	IsSuperuser       bool            `bun:"is_superuser" json:"is_superuser,omitempty"`
	LastLogin         *time.Time      `bun:"last_login,nullzero" json:"last_login,omitempty"`
	Permissions       map[string]bool `bun:"permissions" json:"permissions,omitempty"`
	Properties        map[string]any  `bun:"property" json:"property,omitempty"`
	Groups            []*Group        `bun:"m2m:users_groups,join:User=Group" json:"groups,omitempty"`
	CreatedAt         *time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt         *time.Time      `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`

	// Password and PasswordConfirmation are transient registration input.
	// They are bcrypt hashed into PasswordHash before persisting and cleared
	// after a save so a re-save never re-triggers password validation.
	Password             string `bun:"-" json:"-"`
	PasswordConfirmation string `bun:"-" json:"-"`
}

// Activate marks the user activated, clearing the activation code.
func (u *User) Activate() {
	now := time.Now()
	u.ActivationCode = ""
	u.IsActivated = true
	u.ActivatedAt = &now
}

// SetProperty merges the given values into the property map. Existing keys
// not present in values are preserved.
func (u *User) SetProperty(values map[string]any) {
	if len(values) == 0 {
		return
	}

	if u.Properties == nil {
		u.Properties = make(map[string]any, len(values))
	}

	for k, v := range values {
		u.Properties[k] = v
	}
}

// InGroup reports membership by group code.
func (u *User) InGroup(code string) bool {
	for _, g := range u.Groups {
		if g != nil && g.Code == code {
			return true
		}
	}
	return false
}

// HasPermission checks the user's own permission flags and those of its
// groups. Superusers always pass.
func (u *User) HasPermission(key string) bool {
	if u.IsSuperuser {
		return true
	}

	if u.Permissions[key] {
		return true
	}

	for _, g := range u.Groups {
		if g != nil && g.Permissions[key] {
			return true
		}
	}

	return false
}

// CheckPersistCode compares a presented persist code against the stored one
// in constant time.
func (u *User) CheckPersistCode(code string) bool {
	return CodesMatch(u.PersistCode, code)
}

// CheckResetPasswordCode compares a presented restore code against the stored
// single-use reset code.
func (u *User) CheckResetPasswordCode(code string) bool {
	return CodesMatch(u.ResetPasswordCode, code)
}

// GetRestoreCode returns the id!code pair mailed out for password restores.
func (u *User) GetRestoreCode() string {
	return EncodeRestoreCode(u.ID, u.ResetPasswordCode)
}

// Group carries a permission set shared by its members.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:grp"`

	ID          uuid.UUID       `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Code        string          `bun:"code,notnull,unique" json:"code,omitempty"`
	Name        string          `bun:"name,notnull" json:"name,omitempty"`
	Description string          `bun:"description" json:"description,omitempty"`
	Permissions map[string]bool `bun:"permissions" json:"permissions,omitempty"`
	CreatedAt   *time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt   *time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// UserGroup is the users<->groups join row.
type UserGroup struct {
	bun.BaseModel `bun:"table:users_groups,alias:usrgrp"`

	UserID  uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	User    *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	GroupID uuid.UUID `bun:"group_id,pk,type:uuid" json:"group_id,omitempty"`
	Group   *Group    `bun:"rel:belongs-to,join:group_id=id" json:"group,omitempty"`
}

// Throttle tracks login attempts per (user, source IP) pair. Counters are
// only kept for resolved users; unknown logins are never tracked.
type Throttle struct {
	bun.BaseModel `bun:"table:throttles,alias:thr"`

	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	IPAddress     string     `bun:"ip_address,notnull" json:"ip_address,omitempty"`
	Attempts      int        `bun:"attempts" json:"attempts,omitempty"`
	LastAttemptAt *time.Time `bun:"last_attempt_at,nullzero" json:"last_attempt_at,omitempty"`
	IsSuspended   bool       `bun:"is_suspended" json:"is_suspended,omitempty"`
	SuspendedAt   *time.Time `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	IsBanned      bool       `bun:"is_banned" json:"is_banned,omitempty"`
}

// Check evaluates the record against its lockout state without mutating it.
// Banned records always fail. Suspended records fail until the suspension
// window has elapsed.
func (t *Throttle) Check(window string) (bool, error) {
	if t == nil {
		return true, nil
	}

	if t.IsBanned {
		return false, nil
	}

	if !t.IsSuspended {
		return true, nil
	}

	if t.SuspendedAt == nil {
		return false, nil
	}

	elapsed, err := IsOutsideThresholdPeriod(*t.SuspendedAt, window)
	if err != nil {
		return false, err
	}

	return elapsed, nil
}
