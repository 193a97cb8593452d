// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is the local record of a user. RemoteAccountID links it to the
// media server account; once set it never changes.
type Account struct {
	ID              string
	UserName        string
	PasswordHash    string
	RemoteAccountID *string
	IsAdmin         bool
	IsDisabled      bool
	// ExpiresAt nil means the account never expires.
	ExpiresAt *time.Time
	RoleID    *string
	CreatedAt time.Time
}

// Linked reports whether the account has a media server counterpart.
func (a *Account) Linked() bool {
	return a.RemoteAccountID != nil && *a.RemoteAccountID != ""
}

// Expired reports whether the account has an expiry at or before now.
func (a *Account) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}
