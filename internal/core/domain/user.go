package domain

import "time"

// UserStatus enumerates possible account states.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusArchived  UserStatus = "archived"
)

// MFAType discriminates the second-factor mechanism enrolled for a user.
type MFAType string

const (
	MFATypeTOTP  MFAType = "totp"
	MFATypeEmail MFAType = "email"
)

// User mirrors the persisted representation of an account, including its
// RBAC grants and MFA state. Use cases mutate it in place and hand it back
// to the repository for persistence; instances are never cached across
// requests.
type User struct {
	ID                string
	Email             string
	FirstName         string
	LastName          string
	PasswordHash      string
	PasswordAlgo      string
	Status            UserStatus
	Roles             []Role
	Permissions       []PermissionGrant
	MFAEnabled        bool
	MFAType           *MFAType
	MFASecret         *string
	MFARecoveryCodes  []string
	PasswordChangedAt *time.Time
	LastLogin         *time.Time
	LastActivity      *time.Time
	CreatedAt         time.Time
}

// IsActive reports whether the account may authenticate and hold sessions.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// HasSecondFactor reports whether MFA must gate login completion.
func (u User) HasSecondFactor() bool {
	return u.MFAEnabled && u.MFAType != nil
}

// Touch records authentication activity timestamps.
func (u *User) Touch(at time.Time) {
	t := at
	u.LastLogin = &t
	u.LastActivity = &t
}

// EnableMFA stores the encrypted secret and marks the mechanism active.
func (u *User) EnableMFA(kind MFAType, encryptedSecret string, recoveryCodes []string) {
	u.MFAEnabled = true
	kindCopy := kind
	u.MFAType = &kindCopy
	secretCopy := encryptedSecret
	u.MFASecret = &secretCopy
	u.MFARecoveryCodes = recoveryCodes
}

// DisableMFA clears all second-factor state from the account.
func (u *User) DisableMFA() {
	u.MFAEnabled = false
	u.MFAType = nil
	u.MFASecret = nil
	u.MFARecoveryCodes = nil
}

// PasswordContext carries user inputs that must not appear inside a password.
type PasswordContext struct {
	Email     string
	FirstName string
	LastName  string
}
