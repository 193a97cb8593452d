// Package invites declares the Invite Ledger storage contract. Every state
// transition that matters for concurrency (claim, commit, release,
// delete-if-spent, cleanup) is a single conditional operation, never a read followed by a write.
package invites

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Repository interface {
	// Create stores a new invite. A duplicate code yields common.ErrConflict.
	Create(ctx context.Context, invite *models.Invite) error
	Get(ctx context.Context, code string) (*models.Invite, error)
	List(ctx context.Context) ([]models.Invite, error)

	// Claim atomically reserves one use if the invite is not expired at now
	// and completed plus reserved uses are below MaxUses, returning the
	// updated row. When no row qualifies it returns common.ErrorNotFound.
	Claim(ctx context.Context, code string, now time.Time) (*models.Invite, error)
	// Commit turns one reservation into a completed use and returns the
	// updated row, or common.ErrorNotFound when there is nothing to commit.
	Commit(ctx context.Context, code string) (*models.Invite, error)
	// Release drops one reservation. Releasing a deleted invite is not an error.
	Release(ctx context.Context, code string) error
	// DeleteIfSpent deletes the invite only if it is expired at now or its
	// completed uses reached MaxUses, and reports whether it did.
	DeleteIfSpent(ctx context.Context, code string, now time.Time) (bool, error)
	// Delete removes the invite unconditionally.
	Delete(ctx context.Context, code string) error
	// Cleanup deletes every expired or exhausted invite and returns the count.
	// Reservations alone never make an invite exhausted.
	Cleanup(ctx context.Context, now time.Time) (int64, error)
}
