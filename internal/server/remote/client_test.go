package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/", APIKey: "key", Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "ftp://host"})
	assert.Error(t, err)
}

func TestClient_ListAccounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/Users", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get(tokenHeader))
		_, _ = io.WriteString(w, `[{"Id":"1","Name":"alice"},{"Id":"2","Name":"bob","Policy":{"IsDisabled":true}}]`)
	})

	got, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Policy)
	assert.True(t, got[1].Policy.IsDisabled)
}

func TestClient_ListAccounts_MissingIDIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"Name":"ghost"}]`)
	})

	_, err := c.ListAccounts(context.Background())
	assert.ErrorIs(t, err, common.ErrRemoteUnavailable)
}

func TestClient_GetAccount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Users/1":
			_, _ = io.WriteString(w, `{"Id":"1","Name":"alice","Policy":{"IsAdministrator":true,"EnableAllFolders":true}}`)
		case "/Users/2":
			_, _ = io.WriteString(w, `{"Id":"2","Name":"bob"}`)
		case "/Users/3":
			_, _ = io.WriteString(w, `{"Id":"3","Policy":{"IsDisabled":"nope"}}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	a, err := c.GetAccount(ctx, "1")
	require.NoError(t, err)
	assert.True(t, a.Policy.IsAdministrator)
	assert.True(t, a.Policy.EnableAllFolders)

	_, err = c.GetAccount(ctx, "2")
	assert.ErrorIs(t, err, common.ErrRemoteUnavailable, "missing policy")

	_, err = c.GetAccount(ctx, "3")
	assert.ErrorIs(t, err, common.ErrRemoteUnavailable, "malformed policy")

	_, err = c.GetAccount(ctx, "404")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestClient_SetPolicyKeepsUnknownFields(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Users/1/Policy", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	})

	var p Policy
	require.NoError(t, json.Unmarshal([]byte(`{"IsDisabled":false,"MaxActiveSessions":3}`), &p))
	p.IsDisabled = true

	require.NoError(t, c.SetPolicy(context.Background(), "1", &p))
	assert.Equal(t, true, body["IsDisabled"])
	assert.Equal(t, float64(3), body["MaxActiveSessions"])
}

func TestClient_SetDisabledOnlySendsSingleField(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.SetDisabledOnly(context.Background(), "1", true))
	assert.Equal(t, map[string]any{"IsDisabled": true}, body)
}

func TestClient_Authenticate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Users/AuthenticateByName", r.URL.Path)
		assert.Contains(t, r.Header.Get(authHeader), "MediaBrowser")

		var req authenticateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Pw != "right" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"AccessToken":"t","User":{"Id":"7","Name":"`+req.Username+`"}}`)
	})
	ctx := context.Background()

	a, err := c.Authenticate(ctx, "alice", "right")
	require.NoError(t, err)
	assert.Equal(t, "7", a.ID)

	_, err = c.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.NotErrorIs(t, err, common.ErrRemoteUnavailable)
}

func TestClient_ServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.CreateAccount(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, common.ErrRemoteUnavailable)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "boom", se.Body)
}

func TestClient_BadRequestIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.CreateAccount(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, common.ErrRemoteRejected)
}

func TestClient_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.ListLibraryFolders(context.Background())
	assert.ErrorIs(t, err, common.ErrRemoteUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_LibraryFoldersAndLayout(t *testing.T) {
	var posted string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/Library/VirtualFolders":
			_, _ = io.WriteString(w, `[{"Name":"Movies","ItemId":"m"},{"Name":"Shows","ItemId":"s"}]`)
		case r.URL.Path == "/DisplayPreferences/usersettings" && r.Method == http.MethodGet:
			assert.Equal(t, "9", r.URL.Query().Get("userId"))
			assert.Equal(t, layoutClient, r.URL.Query().Get("client"))
			_, _ = io.WriteString(w, `{"CustomPrefs":{"homesection0":"smalllibrarytiles"}}`)
		case r.URL.Path == "/DisplayPreferences/usersettings" && r.Method == http.MethodPost:
			b, _ := io.ReadAll(r.Body)
			posted = string(b)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	folders, err := c.ListLibraryFolders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Folder{{ID: "m", Name: "Movies"}, {ID: "s", Name: "Shows"}}, folders)

	layout, err := c.GetHomeLayout(ctx, "9")
	require.NoError(t, err)
	assert.JSONEq(t, `{"CustomPrefs":{"homesection0":"smalllibrarytiles"}}`, string(layout))

	require.NoError(t, c.SetHomeLayout(ctx, "10", layout))
	assert.JSONEq(t, string(layout), posted)
}
