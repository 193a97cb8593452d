package models

import (
	"encoding/json"
	"time"
)

// AccessProfile is a template of library access and home layout captured
// from a reference account on the media server.
type AccessProfile struct {
	ID                    string
	Name                  string
	SourceRemoteAccountID string
	FolderIDs             []string
	// HomeLayout is the reference account's display preferences, kept opaque.
	HomeLayout json.RawMessage
	CreatedAt  time.Time
}
