package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/invites"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/sessions"
)

// MemoryRepositoryManager keeps every repository in process memory.
type MemoryRepositoryManager struct {
	accounts *accounts.MemoryRepository
	invites  *invites.MemoryRepository
	profiles *profiles.MemoryRepository
	sessions *sessions.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		accounts: accounts.NewMemoryRepository(),
		invites:  invites.NewMemoryRepository(),
		profiles: profiles.NewMemoryRepository(),
		sessions: sessions.NewMemoryRepository(),
	}
}

// RunMigrations is a no-op; there is no schema.
func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *MemoryRepositoryManager) Accounts() accounts.Repository { return m.accounts }

func (m *MemoryRepositoryManager) Invites() invites.Repository { return m.invites }

func (m *MemoryRepositoryManager) Profiles() profiles.Repository { return m.profiles }

func (m *MemoryRepositoryManager) Sessions() sessions.Repository { return m.sessions }

func (m *MemoryRepositoryManager) Ping(ctx context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close() error { return nil }
