package invites

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// MemoryRepository is a process-local Repository; each method holds the
// mutex for its whole body, matching the atomicity of the SQL statements.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*models.Invite
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*models.Invite)}
}

func clone(i *models.Invite) *models.Invite {
	c := *i
	if i.ProfileID != nil {
		v := *i.ProfileID
		c.ProfileID = &v
	}
	if i.RoleID != nil {
		v := *i.RoleID
		c.RoleID = &v
	}
	if i.MaxUses != nil {
		v := *i.MaxUses
		c.MaxUses = &v
	}
	if i.ExpiresAt != nil {
		v := *i.ExpiresAt
		c.ExpiresAt = &v
	}
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, invite *models.Invite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[invite.Code]; ok {
		return fmt.Errorf("invite code: %w", common.ErrConflict)
	}
	invite.CreatedAt = time.Now()
	r.rows[invite.Code] = clone(invite)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, code string) (*models.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.rows[code]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(inv), nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]models.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]models.Invite, 0, len(r.rows))
	for _, inv := range r.rows {
		result = append(result, *clone(inv))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *MemoryRepository) Claim(ctx context.Context, code string, now time.Time) (*models.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.rows[code]
	if !ok || inv.Expired(now) || inv.Full() {
		return nil, common.ErrorNotFound
	}
	inv.ReservedCount++
	return clone(inv), nil
}

func (r *MemoryRepository) Commit(ctx context.Context, code string) (*models.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.rows[code]
	if !ok || inv.ReservedCount == 0 {
		return nil, common.ErrorNotFound
	}
	inv.ReservedCount--
	inv.UsedCount++
	return clone(inv), nil
}

func (r *MemoryRepository) Release(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inv, ok := r.rows[code]; ok && inv.ReservedCount > 0 {
		inv.ReservedCount--
	}
	return nil
}

func (r *MemoryRepository) DeleteIfSpent(ctx context.Context, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.rows[code]
	if !ok || !(inv.Expired(now) || inv.Exhausted()) {
		return false, nil
	}
	delete(r.rows, code)
	return true, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[code]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, code)
	return nil
}

func (r *MemoryRepository) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for code, inv := range r.rows {
		if inv.Expired(now) || inv.Exhausted() {
			delete(r.rows, code)
			n++
		}
	}
	return n, nil
}
