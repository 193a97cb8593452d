// Package accounts declares the Credential Store: the durable table of local
// accounts, with PostgreSQL and in-memory implementations.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Repository defines operations on local accounts. Lookups that find nothing
// return common.ErrorNotFound; duplicate usernames or remote ids return
// common.ErrConflict.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	// GetByUserName matches case-insensitively.
	GetByUserName(ctx context.Context, userName string) (*models.Account, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	Count(ctx context.Context) (int64, error)

	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error
	// SetDisabled flips the disabled flag unconditionally.
	SetDisabled(ctx context.Context, id string, disabled bool) error
	// Enable clears both the disabled flag and the expiry, making the account permanent.
	Enable(ctx context.Context, id string) (*models.Account, error)
	// ClearDisabled re-enables a disabled account whose expiry has not passed.
	// It reports whether a row changed.
	ClearDisabled(ctx context.Context, id string, now time.Time) (bool, error)
	// DisableExpired marks every enabled account with expires_at <= now as
	// disabled in a single statement and returns the rows it changed.
	DisableExpired(ctx context.Context, now time.Time) ([]models.Account, error)

	Delete(ctx context.Context, id string) error
}
