package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	code, err := MakeRandHexString(16)
	require.NoError(t, err)
	assert.Len(t, code, 32)
	_, err = hex.DecodeString(code)
	assert.NoError(t, err, "invite codes must be URL safe hex")

	other, err := MakeRandHexString(16)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)

	empty, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGenerateRandByteArray(t *testing.T) {
	salt := GenerateRandByteArray(16)
	assert.Len(t, salt, 16)
	assert.NotEqual(t, salt, GenerateRandByteArray(16))
}

func TestWipeByteArray(t *testing.T) {
	key := []byte("derived-key")
	WipeByteArray(key)
	assert.Equal(t, make([]byte, len("derived-key")), key)

	assert.NotPanics(t, func() { WipeByteArray(nil) })
}

func TestKind_MapsWrappedSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrorNotFound, "not_found"},
		{ErrExpired, "expired"},
		{ErrExhausted, "exhausted"},
		{ErrConflict, "conflict"},
		{ErrRemoteUnavailable, "remote_unavailable"},
		{ErrRemoteRejected, "remote_unavailable"},
		{ErrInvalidCredentials, "invalid_credentials"},
		{ErrValidation, "validation"},
		{ErrorUnauthorized, "unauthorized"},
		{ErrInvalidToken, "unauthorized"},
		{ErrTokenExpired, "unauthorized"},
		{ErrForbidden, "forbidden"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("redeem %q: %w", "code", tc.err)
		assert.Equal(t, tc.want, Kind(wrapped), tc.err.Error())
	}
}
