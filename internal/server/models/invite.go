package models

import "time"

// Invite is a redeemable code that provisions a new account.
// Completing MaxUses redemptions or passing ExpiresAt deletes the row.
type Invite struct {
	Code  string
	Label string
	// ProfileID nil grants access to all library folders.
	ProfileID *string
	// RoleID nil assigns the default role.
	RoleID *string
	// MaxUses nil means unlimited.
	MaxUses *int
	// UsedCount counts completed redemptions; ReservedCount counts
	// redemptions still in flight. Only UsedCount makes an invite exhausted.
	UsedCount     int
	ReservedCount int
	ExpiresAt     *time.Time
	// AccountValidity is added to the redemption time to compute the new
	// account's ExpiresAt. Zero means accounts never expire.
	AccountValidity time.Duration
	CreatedBy       string
	CreatedAt       time.Time
}

func (i *Invite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

func (i *Invite) Exhausted() bool {
	return i.MaxUses != nil && i.UsedCount >= *i.MaxUses
}

// Full reports whether every use is either completed or reserved, so no
// further redemption can start.
func (i *Invite) Full() bool {
	return i.MaxUses != nil && i.UsedCount+i.ReservedCount >= *i.MaxUses
}
