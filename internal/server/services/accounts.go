package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/remote"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/accounts"
)

// AccountService holds the administrative operations on accounts.
type AccountService struct {
	accounts accounts.Repository
	sync     *SyncService
	gateway  remote.Gateway
	hasher   cryptox.Hasher
	logger   logging.Logger
}

func NewAccountService(acc accounts.Repository, sync *SyncService, gw remote.Gateway, hasher cryptox.Hasher, logger logging.Logger) *AccountService {
	return &AccountService{
		accounts: acc,
		sync:     sync,
		gateway:  gw,
		hasher:   hasher,
		logger:   logger.With("module", "accounts"),
	}
}

// ListSynchronized synchronizes with the media server and then lists the
// local accounts. A failed synchronization is logged, never surfaced: the
// listing is still served from the local store.
func (s *AccountService) ListSynchronized(ctx context.Context) ([]models.Account, error) {
	if _, err := s.sync.Synchronize(ctx); err != nil {
		s.logger.Warn(ctx, "synchronization failed, listing local state", "error", err)
	}
	return s.accounts.List(ctx)
}

// Disable turns the account off on the media server first, then locally.
// If the media server cannot be updated nothing changes.
func (s *AccountService) Disable(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.Linked() {
		if err := setRemoteDisabled(ctx, s.gateway, *account.RemoteAccountID, true); err != nil {
			return nil, remoteFailure(err)
		}
	}
	if err := s.accounts.SetDisabled(ctx, id, true); err != nil {
		return nil, err
	}
	account.IsDisabled = true
	s.logger.Info(ctx, "account disabled", "account", id)
	return account, nil
}

// Enable re-enables the account and makes it permanent: the previous
// expiry is discarded, not restored.
func (s *AccountService) Enable(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.Linked() {
		if err := setRemoteDisabled(ctx, s.gateway, *account.RemoteAccountID, false); err != nil {
			return nil, remoteFailure(err)
		}
	}
	account, err = s.accounts.Enable(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "account enabled", "account", id)
	return account, nil
}

// Delete removes the local record only; the media server account is kept.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "account deleted", "account", id)
	return nil
}

// SetExpiry changes when the account expires; nil makes it permanent.
func (s *AccountService) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	return s.accounts.SetExpiry(ctx, id, expiresAt)
}

// SetAdmin grants or revokes gatekeeper administration. It is a local flag
// only; media server administrator rights are not touched. Live sessions
// pick the change up on their next request.
func (s *AccountService) SetAdmin(ctx context.Context, id string, isAdmin bool) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.SetAdmin(ctx, id, isAdmin); err != nil {
		return nil, err
	}
	account.IsAdmin = isAdmin
	s.logger.Info(ctx, "account admin flag changed", "account", id, "is_admin", isAdmin)
	return account, nil
}

// Bootstrap creates the first administrator when the store is empty and
// reports whether it did.
func (s *AccountService) Bootstrap(ctx context.Context, userName, password string) (bool, error) {
	n, err := s.accounts.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := validateCredentials(userName, password); err != nil {
		return false, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	account, err := s.accounts.Create(ctx, &models.Account{UserName: userName, PasswordHash: hash, IsAdmin: true})
	if err != nil {
		return false, err
	}
	s.logger.Info(ctx, "bootstrap administrator created", "account", account.ID, "username", userName)
	return true, nil
}

// remoteFailure turns any media server error met by a user-initiated
// action into common.ErrRemoteUnavailable.
func remoteFailure(err error) error {
	return fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
}
