package remote

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Policy is the media server's per-account permission record. Fields the
// engine does not model are kept verbatim and written back unchanged.
type Policy struct {
	IsAdministrator  bool
	IsDisabled       bool
	EnabledFolders   []string
	EnableAllFolders bool

	extra map[string]json.RawMessage
}

type policyFields struct {
	IsAdministrator  bool     `json:"IsAdministrator"`
	IsDisabled       bool     `json:"IsDisabled"`
	EnabledFolders   []string `json:"EnabledFolders"`
	EnableAllFolders bool     `json:"EnableAllFolders"`
}

var policyKeys = []string{"IsAdministrator", "IsDisabled", "EnabledFolders", "EnableAllFolders"}

func (p *Policy) UnmarshalJSON(b []byte) error {
	var f policyFields
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	for _, k := range policyKeys {
		delete(raw, k)
	}

	p.IsAdministrator = f.IsAdministrator
	p.IsDisabled = f.IsDisabled
	p.EnabledFolders = f.EnabledFolders
	p.EnableAllFolders = f.EnableAllFolders
	p.extra = raw
	return nil
}

func (p Policy) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.extra)+len(policyKeys))
	for k, v := range p.extra {
		out[k] = v
	}
	folders := p.EnabledFolders
	if folders == nil {
		folders = []string{}
	}
	out["IsAdministrator"] = p.IsAdministrator
	out["IsDisabled"] = p.IsDisabled
	out["EnabledFolders"] = folders
	out["EnableAllFolders"] = p.EnableAllFolders
	return json.Marshal(out)
}

// Clone returns a deep copy.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	c := *p
	c.EnabledFolders = slices.Clone(p.EnabledFolders)
	if p.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(p.extra))
		for k, v := range p.extra {
			c.extra[k] = slices.Clone(v)
		}
	}
	return &c
}

// GrantFolders restricts access to exactly the given folders.
func (p *Policy) GrantFolders(ids []string) {
	p.EnableAllFolders = false
	p.EnabledFolders = slices.Clone(ids)
}

// GrantAllFolders opens every library folder.
func (p *Policy) GrantAllFolders() {
	p.EnableAllFolders = true
	p.EnabledFolders = nil
}

// RevokeFolders removes all library access.
func (p *Policy) RevokeFolders() {
	p.EnableAllFolders = false
	p.EnabledFolders = []string{}
}
