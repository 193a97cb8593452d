// Package repomanager opens the configured store and vends its repositories.
package repomanager

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/invites"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/sessions"
)

// MemoryDSN selects the in-process store. Data does not survive a restart.
const MemoryDSN = "memory"

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Accounts() accounts.Repository
	Invites() invites.Repository
	Profiles() profiles.Repository
	Sessions() sessions.Repository
	Close() error
}

// Open returns a manager for dsn: the in-memory store for MemoryDSN,
// PostgreSQL otherwise.
func Open(ctx context.Context, dsn string) (RepositoryManager, error) {
	if strings.EqualFold(strings.TrimSpace(dsn), MemoryDSN) {
		return NewMemoryRepositoryManager(), nil
	}
	return OpenPostgres(ctx, dsn)
}
