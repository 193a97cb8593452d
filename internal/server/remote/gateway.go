// Package remote talks to the media server that owns the authoritative
// account directory. Every failure to reach it, or to make sense of what it
// returned, surfaces as common.ErrRemoteUnavailable.
package remote

import (
	"context"
	"encoding/json"
)

// Account is a media server user. Policy is nil when the server omitted it,
// which list responses are allowed to do.
type Account struct {
	ID     string  `json:"Id"`
	Name   string  `json:"Name"`
	Policy *Policy `json:"Policy,omitempty"`
}

// Folder is a media library root.
type Folder struct {
	ID   string `json:"ItemId"`
	Name string `json:"Name"`
}

// Gateway is the subset of the media server API the engine relies on.
type Gateway interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	// GetAccount returns the account with its full policy.
	GetAccount(ctx context.Context, id string) (*Account, error)
	// SetPolicy writes back a full policy, including fields this package
	// does not model.
	SetPolicy(ctx context.Context, id string, policy *Policy) error
	// SetDisabledOnly writes a policy payload carrying only the disabled flag.
	SetDisabledOnly(ctx context.Context, id string, disabled bool) error
	// Authenticate checks a password against the media server. A rejected
	// password yields common.ErrInvalidCredentials.
	Authenticate(ctx context.Context, userName, password string) (*Account, error)
	CreateAccount(ctx context.Context, userName, password string) (*Account, error)
	ListLibraryFolders(ctx context.Context) ([]Folder, error)
	GetHomeLayout(ctx context.Context, id string) (json.RawMessage, error)
	SetHomeLayout(ctx context.Context, id string, layout json.RawMessage) error
}
