package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/remote"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminUser = "admin"
	adminPass = "admin-password"
)

type testEnv struct {
	app   *fiber.App
	repos *repomanager.MemoryRepositoryManager
	dir   *remote.MemoryDirectory
}

func newTestEnv(t *testing.T, limits Limits) *testEnv {
	t.Helper()

	repos := repomanager.NewMemoryRepositoryManager()
	dir := remote.NewMemoryDirectory()
	log := logging.Nop()
	h := cryptox.NewArgon2Hasher(cryptox.Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 16, SaltLen: 8})

	sync := services.NewSyncService(repos.Accounts(), dir, h, log)
	svc := Services{
		Auth:     services.NewAuthService(repos.Accounts(), repos.Sessions(), dir, h, "test-secret", time.Hour, log),
		Invites:  services.NewInviteService(repos.Invites(), repos.Accounts(), repos.Profiles(), dir, h, 24*time.Hour, log),
		Accounts: services.NewAccountService(repos.Accounts(), sync, dir, h, log),
		Profiles: services.NewProfileService(repos.Profiles(), dir, log),
		Sweeper:  services.NewSweepService(repos.Accounts(), repos.Sessions(), dir, log),
	}

	created, err := svc.Accounts.Bootstrap(context.Background(), adminUser, adminPass)
	require.NoError(t, err)
	require.True(t, created)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &testEnv{
		app:   NewServer(":0", log, svc, limits).App(ctx),
		repos: repos,
		dir:   dir,
	}
}

func (e *testEnv) call(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func (e *testEnv) login(t *testing.T, user, pass string) string {
	t.Helper()
	code, body := e.call(t, http.MethodPost, "/api/login", "", credentialsRequest{UserName: user, Password: pass})
	require.Equal(t, http.StatusOK, code, string(body))

	var res loginResponse
	require.NoError(t, json.Unmarshal(body, &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func errorKind(t *testing.T, body []byte) string {
	t.Helper()
	var res errorResponse
	require.NoError(t, json.Unmarshal(body, &res), string(body))
	return res.Error
}

func TestInviteRedemptionFlow(t *testing.T) {
	e := newTestEnv(t, Limits{})
	e.dir.AddFolder("movies", "Movies")
	token := e.login(t, adminUser, adminPass)

	code, body := e.call(t, http.MethodPost, "/api/invites", token, createInviteRequest{MaxUses: ptr(1), AccountDays: 30})
	require.Equal(t, http.StatusCreated, code, string(body))
	var invite inviteResponse
	require.NoError(t, json.Unmarshal(body, &invite))
	assert.Equal(t, adminUser, invite.CreatedBy)
	assert.EqualValues(t, 30*24*3600, invite.AccountValidity)
	assert.NotEmpty(t, invite.Label)

	code, body = e.call(t, http.MethodPost, "/api/invites/"+invite.Code+"/redeem", "", credentialsRequest{UserName: "alice", Password: "alice-password"})
	require.Equal(t, http.StatusCreated, code, string(body))
	var account accountResponse
	require.NoError(t, json.Unmarshal(body, &account))
	assert.Equal(t, "alice", account.UserName)
	assert.NotNil(t, account.RemoteAccountID)
	assert.NotNil(t, account.ExpiresAt)
	assert.False(t, account.IsAdmin)

	code, body = e.call(t, http.MethodPost, "/api/invites/"+invite.Code+"/redeem", "", credentialsRequest{UserName: "bob", Password: "bob-password"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", errorKind(t, body))

	aliceToken := e.login(t, "alice", "alice-password")
	code, body = e.call(t, http.MethodGet, "/api/invites", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", errorKind(t, body))
}

func TestInviteAdministration(t *testing.T) {
	e := newTestEnv(t, Limits{})
	token := e.login(t, adminUser, adminPass)

	code, body := e.call(t, http.MethodPost, "/api/invites", token, createInviteRequest{Label: "friends", MaxUses: ptr(0)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", errorKind(t, body))

	code, body = e.call(t, http.MethodPost, "/api/invites", token, createInviteRequest{Label: "friends"})
	require.Equal(t, http.StatusCreated, code)
	var invite inviteResponse
	require.NoError(t, json.Unmarshal(body, &invite))

	code, body = e.call(t, http.MethodGet, "/api/invites", token, nil)
	require.Equal(t, http.StatusOK, code)
	var list []inviteResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "friends", list[0].Label)

	code, _ = e.call(t, http.MethodGet, "/api/invites/"+invite.Code, token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = e.call(t, http.MethodPost, "/api/invites/cleanup", token, nil)
	require.Equal(t, http.StatusOK, code)
	var cleaned cleanupResponse
	require.NoError(t, json.Unmarshal(body, &cleaned))
	assert.Zero(t, cleaned.Deleted)

	code, _ = e.call(t, http.MethodDelete, "/api/invites/"+invite.Code, token, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = e.call(t, http.MethodGet, "/api/invites/"+invite.Code, token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLoginErrors(t *testing.T) {
	e := newTestEnv(t, Limits{})

	code, body := e.call(t, http.MethodPost, "/api/login", "", credentialsRequest{UserName: adminUser, Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_credentials", errorKind(t, body))

	e.dir.Fail = func(op, id string) error {
		if op == "ListAccounts" {
			return common.ErrRemoteUnavailable
		}
		return nil
	}
	code, body = e.call(t, http.MethodPost, "/api/login", "", credentialsRequest{UserName: "stranger", Password: "whatever1"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "remote_unavailable", errorKind(t, body))

	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionRequiredAndLogout(t *testing.T) {
	e := newTestEnv(t, Limits{})

	code, body := e.call(t, http.MethodGet, "/api/accounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", errorKind(t, body))

	code, _ = e.call(t, http.MethodGet, "/api/accounts", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	token := e.login(t, adminUser, adminPass)
	code, _ = e.call(t, http.MethodGet, "/api/accounts", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.call(t, http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = e.call(t, http.MethodGet, "/api/accounts", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = e.call(t, http.MethodPost, "/api/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAccountAdministration(t *testing.T) {
	e := newTestEnv(t, Limits{})
	token := e.login(t, adminUser, adminPass)
	e.dir.AddAccount("carol", "carol-password", remote.Policy{})

	code, body := e.call(t, http.MethodGet, "/api/accounts", token, nil)
	require.Equal(t, http.StatusOK, code)
	var list []accountResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 2, "remote account is shadowed on listing")

	var carol accountResponse
	for _, a := range list {
		if a.UserName == "carol" {
			carol = a
		}
	}
	require.NotEmpty(t, carol.ID)

	code, body = e.call(t, http.MethodPost, "/api/accounts/"+carol.ID+"/disable", token, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.True(t, e.dir.Policy(*carol.RemoteAccountID).IsDisabled)

	expiry := time.Now().Add(time.Hour).UTC()
	code, _ = e.call(t, http.MethodPut, "/api/accounts/"+carol.ID+"/expiry", token, expiryRequest{ExpiresAt: &expiry})
	assert.Equal(t, http.StatusNoContent, code)

	code, body = e.call(t, http.MethodPost, "/api/accounts/"+carol.ID+"/enable", token, nil)
	require.Equal(t, http.StatusOK, code)
	var enabled accountResponse
	require.NoError(t, json.Unmarshal(body, &enabled))
	assert.False(t, enabled.IsDisabled)
	assert.Nil(t, enabled.ExpiresAt)
	assert.False(t, e.dir.Policy(*carol.RemoteAccountID).IsDisabled)

	e.dir.Fail = func(op, id string) error {
		if op == "SetPolicy" || op == "SetDisabledOnly" {
			return errors.New("connection reset")
		}
		return nil
	}
	code, body = e.call(t, http.MethodPost, "/api/accounts/"+carol.ID+"/disable", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "remote_unavailable", errorKind(t, body))
	e.dir.Fail = nil

	code, _ = e.call(t, http.MethodDelete, "/api/accounts/"+carol.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = e.call(t, http.MethodPost, "/api/accounts/"+carol.ID+"/disable", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminPromotion(t *testing.T) {
	e := newTestEnv(t, Limits{})
	token := e.login(t, adminUser, adminPass)

	code, body := e.call(t, http.MethodPost, "/api/invites", token, createInviteRequest{})
	require.Equal(t, http.StatusCreated, code, string(body))
	var invite inviteResponse
	require.NoError(t, json.Unmarshal(body, &invite))

	code, body = e.call(t, http.MethodPost, "/api/invites/"+invite.Code+"/redeem", "", credentialsRequest{UserName: "dora", Password: "dora-password"})
	require.Equal(t, http.StatusCreated, code, string(body))
	var dora accountResponse
	require.NoError(t, json.Unmarshal(body, &dora))
	require.False(t, dora.IsAdmin)

	doraToken := e.login(t, "dora", "dora-password")
	code, _ = e.call(t, http.MethodGet, "/api/invites", doraToken, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, _ = e.call(t, http.MethodPut, "/api/accounts/"+dora.ID+"/admin", doraToken, map[string]bool{"is_admin": true})
	assert.Equal(t, http.StatusForbidden, code, "only administrators may promote")

	code, body = e.call(t, http.MethodPut, "/api/accounts/"+dora.ID+"/admin", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", errorKind(t, body))

	code, body = e.call(t, http.MethodPut, "/api/accounts/"+dora.ID+"/admin", token, map[string]bool{"is_admin": true})
	require.Equal(t, http.StatusOK, code, string(body))
	var promoted accountResponse
	require.NoError(t, json.Unmarshal(body, &promoted))
	assert.True(t, promoted.IsAdmin)

	// the existing session picks the change up on its next request
	code, _ = e.call(t, http.MethodGet, "/api/invites", doraToken, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.call(t, http.MethodPut, "/api/accounts/"+dora.ID+"/admin", token, map[string]bool{"is_admin": false})
	require.Equal(t, http.StatusOK, code)
	code, _ = e.call(t, http.MethodGet, "/api/invites", doraToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.call(t, http.MethodPut, "/api/accounts/missing/admin", token, map[string]bool{"is_admin": true})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSweepAndProfiles(t *testing.T) {
	e := newTestEnv(t, Limits{})
	token := e.login(t, adminUser, adminPass)

	code, body := e.call(t, http.MethodPost, "/api/sweeps", token, nil)
	require.Equal(t, http.StatusOK, code)
	var report sweepResponse
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Zero(t, report.Disabled)

	e.dir.AddFolder("movies", "Movies")
	ref := e.dir.AddAccount("reference", "reference-pw", remote.Policy{EnabledFolders: []string{"movies"}})

	code, body = e.call(t, http.MethodPost, "/api/profiles", token, captureProfileRequest{Name: "family", RemoteAccountID: ref})
	require.Equal(t, http.StatusCreated, code, string(body))
	var profile profileResponse
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, []string{"movies"}, profile.FolderIDs)

	code, body = e.call(t, http.MethodGet, "/api/profiles", token, nil)
	require.Equal(t, http.StatusOK, code)
	var profiles []profileResponse
	require.NoError(t, json.Unmarshal(body, &profiles))
	assert.Len(t, profiles, 1)

	code, _ = e.call(t, http.MethodDelete, "/api/profiles/"+profile.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, body = e.call(t, http.MethodPost, "/api/profiles", token, captureProfileRequest{Name: "", RemoteAccountID: ref})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", errorKind(t, body))
}

func TestRateLimiterOnCredentialEndpoints(t *testing.T) {
	e := newTestEnv(t, Limits{Requests: 2, Per: time.Minute})

	for i := 0; i < 2; i++ {
		code, _ := e.call(t, http.MethodPost, "/api/login", "", credentialsRequest{UserName: adminUser, Password: "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, code)
	}
	code, body := e.call(t, http.MethodPost, "/api/login", "", credentialsRequest{UserName: adminUser, Password: adminPass})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "http", errorKind(t, body))
}

func TestHealthAndUnknownRoute(t *testing.T) {
	e := newTestEnv(t, Limits{})

	code, _ := e.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body := e.call(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "http", errorKind(t, body))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	svc := Services{}
	srv := NewServer("127.0.0.1:0", logging.Nop(), svc, Limits{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}

func ptr[T any](v T) *T { return &v }
