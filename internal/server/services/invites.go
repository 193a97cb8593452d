package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/remote"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/invites"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/profiles"
)

const (
	inviteCodeBytes    = 16
	inviteCodeAttempts = 5
)

// InviteSpec describes an invite to create. ExpiresAt wins over the
// Days/Hours/Minutes offsets; with neither, the default validity applies.
// The Account* offsets set how long redeemed accounts stay valid; all zero
// means redeemed accounts never expire.
type InviteSpec struct {
	Label     string
	ProfileID *string
	RoleID    *string
	MaxUses   *int
	ExpiresAt *time.Time

	Days    int
	Hours   int
	Minutes int

	AccountDays    int
	AccountHours   int
	AccountMinutes int
}

func offset(days, hours, minutes int) time.Duration {
	return time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
}

func (s InviteSpec) validate() error {
	if s.MaxUses != nil && *s.MaxUses <= 0 {
		return fmt.Errorf("%w: max uses must be positive", common.ErrValidation)
	}
	for _, v := range []int{s.Days, s.Hours, s.Minutes, s.AccountDays, s.AccountHours, s.AccountMinutes} {
		if v < 0 {
			return fmt.Errorf("%w: offsets must not be negative", common.ErrValidation)
		}
	}
	return nil
}

// InviteService manages the invite ledger and turns invites into accounts.
type InviteService struct {
	invites  invites.Repository
	accounts accounts.Repository
	profiles profiles.Repository
	gateway  remote.Gateway
	hasher   cryptox.Hasher
	logger   logging.Logger
	now      Clock

	defaultValidity time.Duration
}

func NewInviteService(inv invites.Repository, acc accounts.Repository, prof profiles.Repository,
	gw remote.Gateway, hasher cryptox.Hasher, defaultValidity time.Duration, logger logging.Logger) *InviteService {
	return &InviteService{
		invites:         inv,
		accounts:        acc,
		profiles:        prof,
		gateway:         gw,
		hasher:          hasher,
		logger:          logger.With("module", "invites"),
		now:             time.Now,
		defaultValidity: defaultValidity,
	}
}

// Create validates spec and stores a new invite with a random code.
func (s *InviteService) Create(ctx context.Context, spec InviteSpec, createdBy string) (*models.Invite, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var expiresAt time.Time
	switch {
	case spec.ExpiresAt != nil:
		if !spec.ExpiresAt.After(now) {
			return nil, fmt.Errorf("%w: expiry must be in the future", common.ErrValidation)
		}
		expiresAt = *spec.ExpiresAt
	case offset(spec.Days, spec.Hours, spec.Minutes) > 0:
		expiresAt = now.Add(offset(spec.Days, spec.Hours, spec.Minutes))
	default:
		expiresAt = now.Add(s.defaultValidity)
	}

	if spec.ProfileID != nil {
		if _, err := s.profiles.Get(ctx, *spec.ProfileID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, fmt.Errorf("%w: unknown profile %s", common.ErrValidation, *spec.ProfileID)
			}
			return nil, err
		}
	}

	label := spec.Label
	if label == "" {
		label = memorableLabel()
	}

	invite := &models.Invite{
		Label:           label,
		ProfileID:       spec.ProfileID,
		RoleID:          spec.RoleID,
		MaxUses:         spec.MaxUses,
		ExpiresAt:       &expiresAt,
		AccountValidity: offset(spec.AccountDays, spec.AccountHours, spec.AccountMinutes),
		CreatedBy:       createdBy,
	}

	for attempt := 1; ; attempt++ {
		code, err := common.MakeRandHexString(inviteCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("generate invite code: %w", err)
		}
		invite.Code = code

		err = s.invites.Create(ctx, invite)
		if err == nil {
			break
		}
		if !errors.Is(err, common.ErrConflict) || attempt == inviteCodeAttempts {
			return nil, err
		}
		s.logger.Warn(ctx, "invite code collision, regenerating", "attempt", attempt)
	}

	s.logger.Info(ctx, "invite created", "label", invite.Label, "created_by", createdBy)
	return invite, nil
}

func (s *InviteService) List(ctx context.Context) ([]models.Invite, error) {
	return s.invites.List(ctx)
}

func (s *InviteService) Get(ctx context.Context, code string) (*models.Invite, error) {
	return s.invites.Get(ctx, code)
}

// Delete revokes an invite regardless of its state.
func (s *InviteService) Delete(ctx context.Context, code string) error {
	return s.invites.Delete(ctx, code)
}

// Cleanup deletes every expired or exhausted invite in one statement.
func (s *InviteService) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.invites.Cleanup(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info(ctx, "invites cleaned up", "deleted", n)
	}
	return n, nil
}

// terminal deletes a spent invite and returns the error describing why it
// is spent.
func (s *InviteService) terminal(ctx context.Context, invite *models.Invite, now time.Time) error {
	if _, err := s.invites.DeleteIfSpent(ctx, invite.Code, now); err != nil {
		s.logger.Warn(ctx, "failed to delete spent invite", "label", invite.Label, "error", err)
	}
	if invite.Expired(now) {
		return common.ErrExpired
	}
	return common.ErrExhausted
}

// Redeem provisions a new account from the invite identified by code.
//
// A usage slot is reserved with one conditional increment before anything is
// created on the media server, so concurrent redemptions can never exceed
// MaxUses. The reservation becomes a completed use only after the account is
// provisioned; any failure before that gives the slot back. While every
// remaining slot is reserved the invite is busy, not exhausted.
func (s *InviteService) Redeem(ctx context.Context, code, userName, password string) (*models.Account, error) {
	if err := validateCredentials(userName, password); err != nil {
		return nil, err
	}

	now := s.now()
	invite, err := s.invites.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if invite.Expired(now) || invite.Exhausted() {
		return nil, s.terminal(ctx, invite, now)
	}

	if _, err := s.accounts.GetByUserName(ctx, userName); err == nil {
		return nil, fmt.Errorf("username %q: %w", userName, common.ErrConflict)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	claimed, err := s.invites.Claim(ctx, code, now)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		// Lost a race: someone else spent, reserved or deleted it since the read above.
		current, getErr := s.invites.Get(ctx, code)
		if getErr != nil {
			return nil, common.ErrExhausted
		}
		if current.Expired(now) || current.Exhausted() {
			return nil, s.terminal(ctx, current, now)
		}
		return nil, fmt.Errorf("%w: every remaining use of the invite is being redeemed, retry later", common.ErrConflict)
	}

	account, err := s.provision(ctx, claimed, userName, password, now)
	if err != nil {
		if relErr := s.invites.Release(ctx, code); relErr != nil {
			s.logger.Error(ctx, "failed to release invite slot", "label", claimed.Label, "error", relErr)
		}
		return nil, err
	}

	committed, err := s.invites.Commit(ctx, code)
	if err != nil {
		// the account exists; only the bookkeeping is lost
		s.logger.Warn(ctx, "failed to commit invite use", "label", claimed.Label, "error", err)
	} else if committed.Exhausted() {
		if _, err := s.invites.DeleteIfSpent(ctx, code, now); err != nil {
			s.logger.Warn(ctx, "failed to delete exhausted invite", "label", claimed.Label, "error", err)
		}
	}

	s.logger.Info(ctx, "invite redeemed", "label", claimed.Label, "account", account.ID)
	return account, nil
}

func (s *InviteService) provision(ctx context.Context, invite *models.Invite, userName, password string, now time.Time) (*models.Account, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.gateway.CreateAccount(ctx, userName, password)
	if err != nil {
		if errors.Is(err, common.ErrRemoteRejected) {
			return nil, fmt.Errorf("%w: remote refused %q: %v", common.ErrConflict, userName, err)
		}
		return nil, err
	}
	remoteID := created.ID

	if err := s.applyGrants(ctx, invite, created); err != nil {
		s.abandon(ctx, remoteID, err)
		return nil, err
	}

	account := &models.Account{
		UserName:        userName,
		PasswordHash:    hash,
		RemoteAccountID: &remoteID,
		RoleID:          invite.RoleID,
	}
	if invite.AccountValidity > 0 {
		expiresAt := now.Add(invite.AccountValidity)
		account.ExpiresAt = &expiresAt
	}

	account, err = s.accounts.Create(ctx, account)
	if err != nil {
		s.abandon(ctx, remoteID, err)
		return nil, err
	}
	return account, nil
}

// applyGrants sets folder access on a freshly created remote account. When
// the targeted profile cannot be read, all folder access is revoked rather
// than leaving the server default in place.
func (s *InviteService) applyGrants(ctx context.Context, invite *models.Invite, created *remote.Account) error {
	policy := created.Policy
	if policy == nil {
		detail, err := s.gateway.GetAccount(ctx, created.ID)
		if err != nil {
			return err
		}
		policy = detail.Policy
	}
	policy = policy.Clone()
	policy.IsAdministrator = false

	var profile *models.AccessProfile
	switch {
	case invite.ProfileID == nil:
		policy.GrantAllFolders()
	default:
		p, err := s.profiles.Get(ctx, *invite.ProfileID)
		if err != nil {
			s.logger.Warn(ctx, "profile lookup failed, revoking folder access",
				"profile", *invite.ProfileID, "error", err)
			policy.RevokeFolders()
		} else {
			profile = p
			policy.GrantFolders(p.FolderIDs)
		}
	}

	if err := s.gateway.SetPolicy(ctx, created.ID, policy); err != nil {
		return err
	}

	if profile != nil && len(profile.HomeLayout) > 0 {
		if err := s.gateway.SetHomeLayout(ctx, created.ID, profile.HomeLayout); err != nil {
			s.logger.Warn(ctx, "failed to copy home layout", "profile", profile.ID, "error", err)
		}
	}
	return nil
}

// abandon disables a remote account whose local record could not be
// completed. The synchronizer later adopts it as a disabled shadow.
func (s *InviteService) abandon(ctx context.Context, remoteID string, cause error) {
	s.logger.Error(ctx, "redemption failed after remote account creation",
		"remote_account", remoteID, "error", cause)
	if err := s.gateway.SetDisabledOnly(ctx, remoteID, true); err != nil {
		s.logger.Error(ctx, "failed to disable orphaned remote account",
			"remote_account", remoteID, "error", err)
	}
}
