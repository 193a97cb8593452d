package profiles

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*models.AccessProfile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*models.AccessProfile)}
}

func clone(p *models.AccessProfile) *models.AccessProfile {
	c := *p
	c.FolderIDs = append([]string(nil), p.FolderIDs...)
	c.HomeLayout = append([]byte(nil), p.HomeLayout...)
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, profile *models.AccessProfile) (*models.AccessProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rows {
		if existing.Name == profile.Name {
			return nil, fmt.Errorf("profile %q: %w", profile.Name, common.ErrConflict)
		}
	}
	profile.ID = uuid.NewString()
	profile.CreatedAt = time.Now()
	r.rows[profile.ID] = clone(profile)
	return profile, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.AccessProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(p), nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]models.AccessProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]models.AccessProfile, 0, len(r.rows))
	for _, p := range r.rows {
		result = append(result, *clone(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
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
