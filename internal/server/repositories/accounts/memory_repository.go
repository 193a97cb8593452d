package accounts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is a process-local Repository guarded by a single mutex,
// so every method is atomic in the same way a single SQL statement is.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*models.Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*models.Account)}
}

func clone(a *models.Account) *models.Account {
	c := *a
	if a.RemoteAccountID != nil {
		v := *a.RemoteAccountID
		c.RemoteAccountID = &v
	}
	if a.ExpiresAt != nil {
		v := *a.ExpiresAt
		c.ExpiresAt = &v
	}
	if a.RoleID != nil {
		v := *a.RoleID
		c.RoleID = &v
	}
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rows {
		if strings.EqualFold(existing.UserName, account.UserName) {
			return nil, fmt.Errorf("account %q: %w", account.UserName, common.ErrConflict)
		}
		if account.Linked() && existing.Linked() && *existing.RemoteAccountID == *account.RemoteAccountID {
			return nil, fmt.Errorf("remote account %q: %w", *account.RemoteAccountID, common.ErrConflict)
		}
	}

	account.ID = uuid.NewString()
	account.CreatedAt = time.Now()
	r.rows[account.ID] = clone(account)
	return account, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(a), nil
}

func (r *MemoryRepository) GetByUserName(ctx context.Context, userName string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.rows {
		if strings.EqualFold(a.UserName, userName) {
			return clone(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) GetByRemoteID(ctx context.Context, remoteID string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.rows {
		if a.Linked() && *a.RemoteAccountID == remoteID {
			return clone(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) List(ctx context.Context) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]models.Account, 0, len(r.rows))
	for _, a := range r.rows {
		result = append(result, *clone(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserName < result[j].UserName })
	return result, nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func (r *MemoryRepository) update(id string, fn func(a *models.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(a)
	return nil
}

func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	return r.update(id, func(a *models.Account) { a.PasswordHash = hash })
}

func (r *MemoryRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	return r.update(id, func(a *models.Account) { a.IsAdmin = isAdmin })
}

func (r *MemoryRepository) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	return r.update(id, func(a *models.Account) {
		a.ExpiresAt = nil
		if expiresAt != nil {
			v := *expiresAt
			a.ExpiresAt = &v
		}
	})
}

func (r *MemoryRepository) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return r.update(id, func(a *models.Account) { a.IsDisabled = disabled })
}

func (r *MemoryRepository) Enable(ctx context.Context, id string) (*models.Account, error) {
	var out *models.Account
	err := r.update(id, func(a *models.Account) {
		a.IsDisabled = false
		a.ExpiresAt = nil
		out = clone(a)
	})
	return out, err
}

func (r *MemoryRepository) ClearDisabled(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok || !a.IsDisabled || a.Expired(now) {
		return false, nil
	}
	a.IsDisabled = false
	return true, nil
}

func (r *MemoryRepository) DisableExpired(ctx context.Context, now time.Time) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []models.Account
	for _, a := range r.rows {
		if a.IsDisabled || !a.Expired(now) {
			continue
		}
		a.IsDisabled = true
		changed = append(changed, *clone(a))
	}
	return changed, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	return nil
}
