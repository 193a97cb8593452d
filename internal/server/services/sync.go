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
)

const (
	shadowPasswordBytes = 24
	shadowNameAttempts  = 5
)

// SyncReport summarises one synchronization pass.
type SyncReport struct {
	Remote      int
	Provisioned int
	Reenabled   int
	Failed      int
}

// SyncService makes sure every media server account has a local shadow.
type SyncService struct {
	accounts accounts.Repository
	gateway  remote.Gateway
	hasher   cryptox.Hasher
	logger   logging.Logger
	now      Clock
}

func NewSyncService(acc accounts.Repository, gw remote.Gateway, hasher cryptox.Hasher, logger logging.Logger) *SyncService {
	return &SyncService{
		accounts: acc,
		gateway:  gw,
		hasher:   hasher,
		logger:   logger.With("module", "sync"),
		now:      time.Now,
	}
}

// Synchronize runs one idempotent pass. Only failing to list either side
// aborts it; a failure on a single account is logged and skipped.
func (s *SyncService) Synchronize(ctx context.Context) (*SyncReport, error) {
	remoteAccounts, err := s.gateway.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote accounts: %w", err)
	}
	locals, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local accounts: %w", err)
	}

	byRemote := make(map[string]models.Account, len(locals))
	for _, a := range locals {
		if a.Linked() {
			byRemote[*a.RemoteAccountID] = a
		}
	}

	report := &SyncReport{Remote: len(remoteAccounts)}
	for _, ra := range remoteAccounts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		// The list endpoint may omit policies, so every account is read in full.
		detail, err := s.gateway.GetAccount(ctx, ra.ID)
		if err != nil {
			report.Failed++
			s.logger.Warn(ctx, "failed to read remote account", "remote_account", ra.ID, "error", err)
			continue
		}

		local, ok := byRemote[ra.ID]
		if !ok {
			if err := s.provisionShadow(ctx, detail); err != nil {
				report.Failed++
				s.logger.Warn(ctx, "failed to provision shadow account", "remote_account", ra.ID, "error", err)
				continue
			}
			report.Provisioned++
			continue
		}

		// Only the re-enabled direction is corrected here. Disabling is
		// driven by the sweeper, which owns expiry; if this pass also copied
		// remote disables down, a sweeper write that had not reached the
		// server yet would race with it and accounts could flap.
		if local.IsDisabled && !detail.Policy.IsDisabled {
			changed, err := s.accounts.ClearDisabled(ctx, local.ID, s.now())
			if err != nil {
				report.Failed++
				s.logger.Warn(ctx, "failed to re-enable account", "account", local.ID, "error", err)
				continue
			}
			if changed {
				report.Reenabled++
				s.logger.Info(ctx, "account re-enabled from remote", "account", local.ID)
			}
		}
	}

	s.logger.Debug(ctx, "synchronization finished",
		"remote", report.Remote, "provisioned", report.Provisioned,
		"reenabled", report.Reenabled, "failed", report.Failed)
	return report, nil
}

// provisionShadow creates the local record of a remote account. The random
// password is never disclosed, so the media server stays the only way to
// authenticate until a local password is set through login.
func (s *SyncService) provisionShadow(ctx context.Context, ra *remote.Account) error {
	secret, err := common.MakeRandHexString(shadowPasswordBytes)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return err
	}

	remoteID := ra.ID
	name := ra.Name
	if name == "" {
		name = placeholderName()
	}

	for attempt := 1; ; attempt++ {
		_, err := s.accounts.Create(ctx, &models.Account{
			UserName:        name,
			PasswordHash:    hash,
			RemoteAccountID: &remoteID,
			IsAdmin:         ra.Policy.IsAdministrator,
			IsDisabled:      ra.Policy.IsDisabled,
		})
		if err == nil {
			s.logger.Info(ctx, "shadow account provisioned", "remote_account", remoteID, "username", name)
			return nil
		}
		if !errors.Is(err, common.ErrConflict) || attempt == shadowNameAttempts {
			return err
		}
		if linked, getErr := s.accounts.GetByRemoteID(ctx, remoteID); getErr == nil {
			// Provisioned concurrently by login or another pass.
			s.logger.Debug(ctx, "shadow already exists", "account", linked.ID)
			return nil
		}
		name = placeholderName()
	}
}

func placeholderName() string {
	suffix, err := common.MakeRandHexString(4)
	if err != nil {
		suffix = fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return "user-" + suffix
}
