// Package services contains the server-side engine: invite redemption,
// reconciliation with the media server, expiry sweeps and login.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/remote"
)

const (
	minUserNameLen = 3
	maxUserNameLen = 64
	minPasswordLen = 8
)

// Clock returns the current time. Services take one so tests can move time.
type Clock func() time.Time

func validateCredentials(userName, password string) error {
	if n := utf8.RuneCountInString(userName); n < minUserNameLen || n > maxUserNameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", common.ErrValidation, minUserNameLen, maxUserNameLen)
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLen)
	}
	return nil
}

var errPolicyNotApplied = errors.New("remote policy write did not take")

// setRemoteDisabled writes the disabled flag through the full policy and
// verifies it by reading back. If the composite write did not take, it
// retries once with a payload carrying only the disabled flag.
func setRemoteDisabled(ctx context.Context, gw remote.Gateway, remoteID string, disabled bool) error {
	acc, err := gw.GetAccount(ctx, remoteID)
	if err != nil {
		return err
	}
	if acc.Policy.IsDisabled == disabled {
		return nil
	}

	policy := acc.Policy.Clone()
	policy.IsDisabled = disabled
	writeErr := gw.SetPolicy(ctx, remoteID, policy)
	if writeErr == nil && remoteDisabledIs(ctx, gw, remoteID, disabled) {
		return nil
	}

	if err := gw.SetDisabledOnly(ctx, remoteID, disabled); err != nil {
		return errors.Join(writeErr, err)
	}
	if !remoteDisabledIs(ctx, gw, remoteID, disabled) {
		return fmt.Errorf("%w: %w", common.ErrRemoteUnavailable, errPolicyNotApplied)
	}
	return nil
}

func remoteDisabledIs(ctx context.Context, gw remote.Gateway, remoteID string, disabled bool) bool {
	acc, err := gw.GetAccount(ctx, remoteID)
	return err == nil && acc.Policy.IsDisabled == disabled
}
