package remote

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory_ListOmitsPolicy(t *testing.T) {
	dir := NewMemoryDirectory()
	dir.AddAccount("alice", "pw", Policy{IsAdministrator: true})

	list, err := dir.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Policy)
}

func TestMemoryDirectory_CreateAndAuthenticate(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()

	a, err := dir.CreateAccount(ctx, "Alice", "secret")
	require.NoError(t, err)

	_, err = dir.CreateAccount(ctx, "alice", "other")
	assert.ErrorIs(t, err, common.ErrRemoteRejected)

	got, err := dir.Authenticate(ctx, "ALICE", "secret")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = dir.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestMemoryDirectory_IgnoreCompositeWrites(t *testing.T) {
	dir := NewMemoryDirectory()
	id := dir.AddAccount("alice", "pw", Policy{})
	dir.IgnoreCompositeWrites = true
	ctx := context.Background()

	require.NoError(t, dir.SetPolicy(ctx, id, &Policy{IsDisabled: true}))
	assert.False(t, dir.Policy(id).IsDisabled)

	require.NoError(t, dir.SetDisabledOnly(ctx, id, true))
	assert.True(t, dir.Policy(id).IsDisabled)
}
