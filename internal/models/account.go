package models

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account states. A nil State means the account is active.
const (
	StateSuspended = "suspended"
)

// RoleNameNone is surfaced for root admins that have no admin role linked.
const RoleNameNone = "None"

type Account struct {
	ID                  int64      `json:"id"`
	UUID                uuid.UUID  `json:"uuid"`
	ExternalID          *string    `json:"external_id,omitempty"`
	BillingID           *string    `json:"-"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Language            string     `json:"language"`
	AdminRoleID         *int64     `json:"admin_role_id,omitempty"`
	RootAdmin           bool       `json:"root_admin"`
	State               *string    `json:"state,omitempty"`
	UseTOTP             bool       `json:"use_totp"`
	TOTPSecret          *string    `json:"-"`
	TOTPAuthenticatedAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	AdminRole *AdminRole `json:"admin_role,omitempty"`
}

// NormalizeUsername lowercases a username for storage. Applying it to an
// already-normalized value returns the same value.
func NormalizeUsername(raw string) string {
	return strings.ToLower(raw)
}

// GravatarHash derives the avatar hash from the lowercased email. It is
// computed on read and never stored.
func (a Account) GravatarHash() string {
	sum := md5.Sum([]byte(strings.ToLower(a.Email)))
	return hex.EncodeToString(sum[:])
}

// AvatarURL returns the gravatar URL for the account's email.
func (a Account) AvatarURL() string {
	return "https://www.gravatar.com/avatar/" + a.GravatarHash() + ".jpg"
}

// RoleDisplayName resolves the display name of the account's admin role.
// Root admins without a linked role resolve to "None" rather than nothing;
// a linked role wins regardless of the root admin flag.
func (a Account) RoleDisplayName() *string {
	if a.AdminRole == nil {
		if a.RootAdmin {
			name := RoleNameNone
			return &name
		}
		return nil
	}
	return &a.AdminRole.Name
}

// IsSuspended reports whether the account is blocked from server access.
func (a Account) IsSuspended() bool {
	return a.State != nil && *a.State == StateSuspended
}

// HasBillingID reports whether the account is linked to an external billing
// customer.
func (a Account) HasBillingID() bool {
	return a.BillingID != nil && *a.BillingID != ""
}
