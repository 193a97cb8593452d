package profiles

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CreateGetDelete(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	p, err := r.Create(ctx, &models.AccessProfile{
		Name:       "kids",
		FolderIDs:  []string{"f1"},
		HomeLayout: json.RawMessage(`{"a":1}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	_, err = r.Create(ctx, &models.AccessProfile{Name: "kids"})
	assert.ErrorIs(t, err, common.ErrConflict)

	got, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	got.FolderIDs[0] = "mutated"

	again, _ := r.Get(ctx, p.ID)
	assert.Equal(t, []string{"f1"}, again.FolderIDs)

	require.NoError(t, r.Delete(ctx, p.ID))
	assert.ErrorIs(t, r.Delete(ctx, p.ID), common.ErrorNotFound)
}
