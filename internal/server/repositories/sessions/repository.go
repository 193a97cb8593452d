// Package sessions declares the server-side repository contract for login
// sessions. A session lives until its expiry, an explicit logout, or
// deletion of its account.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking sessions.
type Repository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *models.Session) error

	// Find looks up a session by id and returns common.ErrorNotFound when it
	// is absent. Expired sessions are still returned; callers check ExpiresAt.
	Find(ctx context.Context, id string) (*models.Session, error)

	// Delete removes a session. Deleting a non-existent session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every session whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
