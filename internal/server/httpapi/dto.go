package httpapi

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

type credentialsRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   accountResponse `json:"account"`
}

type accountResponse struct {
	ID              string     `json:"id"`
	UserName        string     `json:"username"`
	RemoteAccountID *string    `json:"remote_account_id,omitempty"`
	IsAdmin         bool       `json:"is_admin"`
	IsDisabled      bool       `json:"is_disabled"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	RoleID          *string    `json:"role_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		ID:              a.ID,
		UserName:        a.UserName,
		RemoteAccountID: a.RemoteAccountID,
		IsAdmin:         a.IsAdmin,
		IsDisabled:      a.IsDisabled,
		ExpiresAt:       a.ExpiresAt,
		RoleID:          a.RoleID,
		CreatedAt:       a.CreatedAt,
	}
}

type createInviteRequest struct {
	Label     string     `json:"label"`
	ProfileID *string    `json:"profile_id"`
	RoleID    *string    `json:"role_id"`
	MaxUses   *int       `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at"`

	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`

	AccountDays    int `json:"account_days"`
	AccountHours   int `json:"account_hours"`
	AccountMinutes int `json:"account_minutes"`
}

func (r createInviteRequest) spec() services.InviteSpec {
	return services.InviteSpec{
		Label:          r.Label,
		ProfileID:      r.ProfileID,
		RoleID:         r.RoleID,
		MaxUses:        r.MaxUses,
		ExpiresAt:      r.ExpiresAt,
		Days:           r.Days,
		Hours:          r.Hours,
		Minutes:        r.Minutes,
		AccountDays:    r.AccountDays,
		AccountHours:   r.AccountHours,
		AccountMinutes: r.AccountMinutes,
	}
}

type inviteResponse struct {
	Code      string     `json:"code"`
	Label     string     `json:"label"`
	ProfileID *string    `json:"profile_id,omitempty"`
	RoleID    *string    `json:"role_id,omitempty"`
	MaxUses   *int       `json:"max_uses,omitempty"`
	UsedCount int        `json:"used_count"`
	// ReservedCount is the number of redemptions still in progress.
	ReservedCount int        `json:"reserved_count"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	// AccountValidity is in seconds; zero means redeemed accounts never expire.
	AccountValidity int64     `json:"account_validity_seconds"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

func toInviteResponse(i *models.Invite) inviteResponse {
	return inviteResponse{
		Code:            i.Code,
		Label:           i.Label,
		ProfileID:       i.ProfileID,
		RoleID:          i.RoleID,
		MaxUses:         i.MaxUses,
		UsedCount:       i.UsedCount,
		ReservedCount:   i.ReservedCount,
		ExpiresAt:       i.ExpiresAt,
		AccountValidity: int64(i.AccountValidity / time.Second),
		CreatedBy:       i.CreatedBy,
		CreatedAt:       i.CreatedAt,
	}
}

type adminRequest struct {
	IsAdmin *bool `json:"is_admin"`
}

type expiryRequest struct {
	// ExpiresAt null makes the account permanent.
	ExpiresAt *time.Time `json:"expires_at"`
}

type captureProfileRequest struct {
	Name            string `json:"name"`
	RemoteAccountID string `json:"remote_account_id"`
}

type profileResponse struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	SourceRemoteAccountID string          `json:"source_remote_account_id"`
	FolderIDs             []string        `json:"folder_ids"`
	HomeLayout            json.RawMessage `json:"home_layout,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

func toProfileResponse(p *models.AccessProfile) profileResponse {
	folders := p.FolderIDs
	if folders == nil {
		folders = []string{}
	}
	return profileResponse{
		ID:                    p.ID,
		Name:                  p.Name,
		SourceRemoteAccountID: p.SourceRemoteAccountID,
		FolderIDs:             folders,
		HomeLayout:            p.HomeLayout,
		CreatedAt:             p.CreatedAt,
	}
}

type sweepResponse struct {
	Disabled       int   `json:"disabled"`
	LocalOnly      int   `json:"local_only"`
	RemoteDisabled int   `json:"remote_disabled"`
	RemoteFailed   int   `json:"remote_failed"`
	Lagging        int   `json:"lagging"`
	SessionsPurged int64 `json:"sessions_purged"`
}

type cleanupResponse struct {
	Deleted int64 `json:"deleted"`
}
