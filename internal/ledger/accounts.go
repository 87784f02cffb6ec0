package ledger

import (
	"fmt"
	"sort"
)

// Accounts holds one bank's accounts and the client ownership index.
// Not safe for concurrent use; the engine serializes access.
type Accounts struct {
	promo    Money
	nextID   AccountID
	accounts map[AccountID]*Account
	clients  map[string][]AccountID
}

// NewAccounts creates an empty registry. Every opened account starts with promo.
func NewAccounts(promo Money) *Accounts {
	return &Accounts{
		promo:    promo,
		accounts: make(map[AccountID]*Account),
		clients:  make(map[string][]AccountID),
	}
}

// HasClient reports whether login has ever opened an account here.
func (a *Accounts) HasClient(login string) bool {
	_, ok := a.clients[login]
	return ok
}

// Open creates a fresh account for login. Identifiers are never reused.
func (a *Accounts) Open(login string) AccountID {
	a.nextID++
	id := a.nextID
	a.accounts[id] = &Account{ID: id, Balance: a.promo, Status: StatusNormal}
	a.clients[login] = append(a.clients[login], id)
	return id
}

// Validate checks that id is owned by login and open for operations.
func (a *Accounts) Validate(id AccountID, login string) error {
	if !a.owns(login, id) {
		if _, ok := a.accounts[id]; ok {
			return ErrOwnershipMismatch
		}
		return ErrAccountNotFound
	}
	acc, ok := a.accounts[id]
	if !ok {
		panic(fmt.Sprintf("ledger: client index references missing account %d", id))
	}
	switch acc.Status {
	case StatusFrozen:
		return ErrAccountFrozen
	case StatusBlocked:
		return ErrAccountBlocked
	}
	return nil
}

// Close removes the account from both the registry and the owner's index.
// Only empty accounts can be closed.
func (a *Accounts) Close(id AccountID, login string) error {
	if err := a.Validate(id, login); err != nil {
		return err
	}
	if a.accounts[id].Balance != 0 {
		return ErrBalanceNotZero
	}
	delete(a.accounts, id)
	ids := a.clients[login]
	for i, v := range ids {
		if v == id {
			a.clients[login] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// List returns snapshots of the client's accounts in opening order.
func (a *Accounts) List(login string) []Account {
	ids := a.clients[login]
	out := make([]Account, 0, len(ids))
	for _, id := range ids {
		acc, ok := a.accounts[id]
		if !ok {
			panic(fmt.Sprintf("ledger: client index references missing account %d", id))
		}
		out = append(out, *acc)
	}
	return out
}

// Lookup returns the live account for mutation by the journal.
func (a *Accounts) Lookup(id AccountID) (*Account, bool) {
	acc, ok := a.accounts[id]
	return acc, ok
}

// SetStatus changes the account status regardless of owner.
func (a *Accounts) SetStatus(id AccountID, status Status) error {
	acc, ok := a.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.Status = status
	return nil
}

// Total sums all balances; used by tests and diagnostics.
func (a *Accounts) Total() Money {
	var sum Money
	for _, acc := range a.accounts {
		sum += acc.Balance
	}
	return sum
}

// AccountsState is the serializable form of Accounts.
type AccountsState struct {
	NextID   AccountID              `json:"next_id"`
	Accounts []Account              `json:"accounts"`
	Clients  map[string][]AccountID `json:"clients"`
}

func (a *Accounts) Export() AccountsState {
	st := AccountsState{
		NextID:   a.nextID,
		Accounts: make([]Account, 0, len(a.accounts)),
		Clients:  make(map[string][]AccountID, len(a.clients)),
	}
	for _, acc := range a.accounts {
		st.Accounts = append(st.Accounts, *acc)
	}
	sort.Slice(st.Accounts, func(i, j int) bool { return st.Accounts[i].ID < st.Accounts[j].ID })
	for login, ids := range a.clients {
		st.Clients[login] = append([]AccountID(nil), ids...)
	}
	return st
}

// RestoreAccounts rebuilds a registry from an exported state.
func RestoreAccounts(promo Money, st AccountsState) (*Accounts, error) {
	a := NewAccounts(promo)
	a.nextID = st.NextID
	for _, acc := range st.Accounts {
		if acc.ID == SystemAccount || acc.ID > st.NextID {
			return nil, fmt.Errorf("restore accounts: id %d outside issued range", acc.ID)
		}
		acc := acc
		a.accounts[acc.ID] = &acc
	}
	for login, ids := range st.Clients {
		for _, id := range ids {
			if _, ok := a.accounts[id]; !ok {
				return nil, fmt.Errorf("restore accounts: client %q references missing account %d", login, id)
			}
		}
		a.clients[login] = append([]AccountID(nil), ids...)
	}
	return a, nil
}

func (a *Accounts) owns(login string, id AccountID) bool {
	for _, v := range a.clients[login] {
		if v == id {
			return true
		}
	}
	return false
}
