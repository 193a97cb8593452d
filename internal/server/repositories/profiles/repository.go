// Package profiles stores access profiles: library-folder and home-layout
// templates captured from a reference media server account.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Repository interface {
	// Create stores a profile. A duplicate name yields common.ErrConflict.
	Create(ctx context.Context, profile *models.AccessProfile) (*models.AccessProfile, error)
	Get(ctx context.Context, id string) (*models.AccessProfile, error)
	List(ctx context.Context) ([]models.AccessProfile, error)
	Delete(ctx context.Context, id string) error
}
