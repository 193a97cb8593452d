package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/remote"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/sessions"
	"github.com/google/uuid"
)

// LoginResult is a freshly established session and the signed token naming it.
type LoginResult struct {
	Token   string
	Session *models.Session
	Account *models.Account
}

// AuthService verifies credentials against the local store and the media
// server, and manages the sessions that result.
type AuthService struct {
	accounts accounts.Repository
	sessions sessions.Repository
	gateway  remote.Gateway
	hasher   cryptox.Hasher
	logger   logging.Logger
	now      Clock

	jwtSecret       []byte
	sessionValidity time.Duration
}

func NewAuthService(acc accounts.Repository, sess sessions.Repository, gw remote.Gateway, hasher cryptox.Hasher,
	secretKey string, sessionValidity time.Duration, logger logging.Logger) *AuthService {
	return &AuthService{
		accounts:        acc,
		sessions:        sess,
		gateway:         gw,
		hasher:          hasher,
		logger:          logger.With("module", "auth"),
		now:             time.Now,
		jwtSecret:       []byte(secretKey),
		sessionValidity: sessionValidity,
	}
}

// Login authenticates userName and opens a session.
//
// Unknown local users are looked up on the media server and, if the server
// accepts the password, provisioned locally. Known users whose local hash
// does not match are re-checked against the server and the local hash is
// refreshed on success. Every rejection returns the same
// common.ErrInvalidCredentials so callers cannot enumerate usernames.
func (s *AuthService) Login(ctx context.Context, userName, password string) (*LoginResult, error) {
	if userName == "" || password == "" {
		return nil, common.ErrInvalidCredentials
	}

	account, err := s.accounts.GetByUserName(ctx, userName)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		account, err = s.loginRemoteOnly(ctx, userName, password)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := s.verifyKnown(ctx, account, userName, password); err != nil {
			return nil, err
		}
	}

	if account.IsDisabled {
		return nil, fmt.Errorf("account disabled: %w", common.ErrForbidden)
	}
	return s.openSession(ctx, account)
}

func (s *AuthService) verifyKnown(ctx context.Context, account *models.Account, userName, password string) error {
	ok, err := s.hasher.Verify(account.PasswordHash, password)
	if err != nil {
		s.logger.Warn(ctx, "stored hash unreadable", "account", account.ID, "error", err)
	}
	if ok {
		return nil
	}
	if !account.Linked() {
		return common.ErrInvalidCredentials
	}

	ra, err := s.gateway.Authenticate(ctx, userName, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			return common.ErrInvalidCredentials
		}
		return err
	}
	if ra.ID != *account.RemoteAccountID {
		return common.ErrInvalidCredentials
	}

	s.refreshHash(ctx, account, password)
	return nil
}

// refreshHash stores a hash of a password the media server just accepted.
// Failing to store it does not fail the login.
func (s *AuthService) refreshHash(ctx context.Context, account *models.Account, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.accounts.UpdatePasswordHash(ctx, account.ID, hash)
	}
	if err != nil {
		s.logger.Warn(ctx, "failed to refresh local password hash", "account", account.ID, "error", err)
		return
	}
	account.PasswordHash = hash
	s.logger.Info(ctx, "local password hash refreshed from remote", "account", account.ID)
}

func (s *AuthService) loginRemoteOnly(ctx context.Context, userName, password string) (*models.Account, error) {
	list, err := s.gateway.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var match *remote.Account
	for i := range list {
		if strings.EqualFold(list[i].Name, userName) {
			match = &list[i]
			break
		}
	}
	if match == nil {
		return nil, common.ErrInvalidCredentials
	}

	ra, err := s.gateway.Authenticate(ctx, match.Name, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}
	if ra.ID != match.ID {
		return nil, common.ErrInvalidCredentials
	}

	// A shadow may already exist under another handle.
	if existing, err := s.accounts.GetByRemoteID(ctx, match.ID); err == nil {
		s.refreshHash(ctx, existing, password)
		return existing, nil
	}

	policy := ra.Policy
	if policy == nil {
		detail, err := s.gateway.GetAccount(ctx, match.ID)
		if err != nil {
			return nil, err
		}
		policy = detail.Policy
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	remoteID := match.ID
	account, err := s.accounts.Create(ctx, &models.Account{
		UserName:        match.Name,
		PasswordHash:    hash,
		RemoteAccountID: &remoteID,
		IsAdmin:         policy.IsAdministrator,
		IsDisabled:      policy.IsDisabled,
	})
	if errors.Is(err, common.ErrConflict) {
		// A concurrent login or sync pass got there first.
		return s.accounts.GetByRemoteID(ctx, remoteID)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "account provisioned from remote login", "account", account.ID, "username", account.UserName)
	return account, nil
}

func (s *AuthService) openSession(ctx context.Context, account *models.Account) (*LoginResult, error) {
	session := &models.Session{
		ID:              uuid.NewString(),
		AccountID:       account.ID,
		IsAdmin:         account.IsAdmin,
		RemoteAccountID: account.RemoteAccountID,
		ExpiresAt:       s.now().Add(s.sessionValidity),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	token, err := auth.GenerateToken(session.ID, account.ID, s.jwtSecret, session.ExpiresAt)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &LoginResult{Token: token, Session: session, Account: account}, nil
}

// Authenticate resolves a token to a live session. Tokens for logged-out or
// expired sessions, and sessions of deleted or disabled accounts, are refused.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Find(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if session.AccountID != claims.AccountID {
		return nil, common.ErrInvalidToken
	}
	if !s.now().Before(session.ExpiresAt) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.Warn(ctx, "failed to delete expired session", "error", err)
		}
		return nil, common.ErrTokenExpired
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if account.IsDisabled {
		return nil, common.ErrorUnauthorized
	}
	return session, nil
}

// Logout ends the session named by token. Expired tokens are accepted
// silently since there is nothing left to end.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil
		}
		return err
	}
	return s.sessions.Delete(ctx, claims.SessionID)
}

// RequireAdmin re-reads the account behind session and fails with
// common.ErrForbidden unless it is currently an administrator. The flag
// cached in the session is not consulted.
func (s *AuthService) RequireAdmin(ctx context.Context, session *models.Session) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !account.IsAdmin {
		return nil, common.ErrForbidden
	}
	return account, nil
}
