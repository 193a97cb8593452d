package services

import (
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/remote"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// cheapHasher keeps argon2 fast enough for tests.
func cheapHasher() cryptox.Hasher {
	return cryptox.NewArgon2Hasher(cryptox.Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 16, SaltLen: 8})
}

type fixture struct {
	repos *repomanager.MemoryRepositoryManager
	dir   *remote.MemoryDirectory
	clock *fakeClock

	invites  *InviteService
	sync     *SyncService
	sweep    *SweepService
	auth     *AuthService
	accounts *AccountService
	profiles *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repos: repomanager.NewMemoryRepositoryManager(),
		dir:   remote.NewMemoryDirectory(),
		clock: &fakeClock{t: time.Now()},
	}
	log := logging.Nop()
	h := cheapHasher()

	f.invites = NewInviteService(f.repos.Invites(), f.repos.Accounts(), f.repos.Profiles(), f.dir, h, 7*24*time.Hour, log)
	f.invites.now = f.clock.Now
	f.sync = NewSyncService(f.repos.Accounts(), f.dir, h, log)
	f.sync.now = f.clock.Now
	f.sweep = NewSweepService(f.repos.Accounts(), f.repos.Sessions(), f.dir, log)
	f.sweep.now = f.clock.Now
	f.auth = NewAuthService(f.repos.Accounts(), f.repos.Sessions(), f.dir, h, "test-secret", time.Hour, log)
	f.auth.now = f.clock.Now
	f.accounts = NewAccountService(f.repos.Accounts(), f.sync, f.dir, h, log)
	f.profiles = NewProfileService(f.repos.Profiles(), f.dir, log)
	return f
}

func ptr[T any](v T) *T { return &v }
