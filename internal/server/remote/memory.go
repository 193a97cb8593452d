package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
)

// MemoryDirectory is a Gateway kept in process memory. It backs local
// development runs without a media server and the service tests.
type MemoryDirectory struct {
	// IgnoreCompositeWrites makes SetPolicy report success without applying
	// anything, like servers that only honour narrow policy updates.
	IgnoreCompositeWrites bool
	// Fail, when set, is consulted before every operation; a non-nil result
	// is returned instead of performing it.
	Fail func(op, id string) error

	mu       sync.Mutex
	seq      int
	order    []string
	accounts map[string]*memoryAccount
	folders  []Folder
	calls    map[string]int
}

type memoryAccount struct {
	name     string
	password string
	policy   *Policy
	layout   json.RawMessage
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		accounts: make(map[string]*memoryAccount),
		calls:    make(map[string]int),
	}
}

// AddAccount seeds an account and returns its id.
func (d *MemoryDirectory) AddAccount(name, password string, policy Policy) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.add(name, password, &policy)
}

func (d *MemoryDirectory) add(name, password string, policy *Policy) string {
	d.seq++
	id := "remote-" + strconv.Itoa(d.seq)
	d.order = append(d.order, id)
	d.accounts[id] = &memoryAccount{name: name, password: password, policy: policy.Clone()}
	return id
}

func (d *MemoryDirectory) AddFolder(id, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.folders = append(d.folders, Folder{ID: id, Name: name})
}

// Policy returns a copy of the stored policy, or nil for an unknown id.
func (d *MemoryDirectory) Policy(id string) *Policy {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.accounts[id]
	if !ok {
		return nil
	}
	return a.policy.Clone()
}

// SetPassword changes a password directly, as an administrator would on the
// media server itself.
func (d *MemoryDirectory) SetPassword(id, password string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.accounts[id]; ok {
		a.password = password
	}
}

// Calls reports how many times op was invoked.
func (d *MemoryDirectory) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Len reports the number of accounts.
func (d *MemoryDirectory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.accounts)
}

func (d *MemoryDirectory) enter(op, id string) error {
	d.calls[op]++
	if d.Fail != nil {
		return d.Fail(op, id)
	}
	return nil
}

func (d *MemoryDirectory) lookup(id string) (*memoryAccount, error) {
	a, ok := d.accounts[id]
	if !ok {
		return nil, fmt.Errorf("remote account %s: %w", id, common.ErrorNotFound)
	}
	return a, nil
}

func (d *MemoryDirectory) ListAccounts(ctx context.Context) ([]Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("ListAccounts", ""); err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(d.order))
	for _, id := range d.order {
		if a, ok := d.accounts[id]; ok {
			out = append(out, Account{ID: id, Name: a.name})
		}
	}
	return out, nil
}

func (d *MemoryDirectory) GetAccount(ctx context.Context, id string) (*Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("GetAccount", id); err != nil {
		return nil, err
	}
	a, err := d.lookup(id)
	if err != nil {
		return nil, err
	}
	return &Account{ID: id, Name: a.name, Policy: a.policy.Clone()}, nil
}

func (d *MemoryDirectory) SetPolicy(ctx context.Context, id string, policy *Policy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("SetPolicy", id); err != nil {
		return err
	}
	a, err := d.lookup(id)
	if err != nil {
		return err
	}
	if !d.IgnoreCompositeWrites {
		a.policy = policy.Clone()
	}
	return nil
}

func (d *MemoryDirectory) SetDisabledOnly(ctx context.Context, id string, disabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("SetDisabledOnly", id); err != nil {
		return err
	}
	a, err := d.lookup(id)
	if err != nil {
		return err
	}
	a.policy.IsDisabled = disabled
	return nil
}

func (d *MemoryDirectory) Authenticate(ctx context.Context, userName, password string) (*Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Authenticate", userName); err != nil {
		return nil, err
	}
	for _, id := range d.order {
		a, ok := d.accounts[id]
		if !ok || !strings.EqualFold(a.name, userName) {
			continue
		}
		if a.password != password || a.policy.IsDisabled {
			break
		}
		return &Account{ID: id, Name: a.name, Policy: a.policy.Clone()}, nil
	}
	return nil, common.ErrInvalidCredentials
}

func (d *MemoryDirectory) CreateAccount(ctx context.Context, userName, password string) (*Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("CreateAccount", userName); err != nil {
		return nil, err
	}
	for _, a := range d.accounts {
		if strings.EqualFold(a.name, userName) {
			return nil, fmt.Errorf("create %q: %w", userName, common.ErrRemoteRejected)
		}
	}
	id := d.add(userName, password, &Policy{})
	return &Account{ID: id, Name: userName, Policy: d.accounts[id].policy.Clone()}, nil
}

func (d *MemoryDirectory) ListLibraryFolders(ctx context.Context) ([]Folder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("ListLibraryFolders", ""); err != nil {
		return nil, err
	}
	return slices.Clone(d.folders), nil
}

func (d *MemoryDirectory) GetHomeLayout(ctx context.Context, id string) (json.RawMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("GetHomeLayout", id); err != nil {
		return nil, err
	}
	a, err := d.lookup(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(a.layout), nil
}

func (d *MemoryDirectory) SetHomeLayout(ctx context.Context, id string, layout json.RawMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("SetHomeLayout", id); err != nil {
		return err
	}
	a, err := d.lookup(id)
	if err != nil {
		return err
	}
	a.layout = slices.Clone(layout)
	return nil
}
