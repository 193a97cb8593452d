package models

import "time"

// Session is an authenticated login. IsAdmin is a snapshot taken at login and
// must not be used for authorization decisions.
type Session struct {
	ID              string
	AccountID       string
	IsAdmin         bool
	RemoteAccountID *string
	ExpiresAt       time.Time
	CreatedAt       time.Time
}
