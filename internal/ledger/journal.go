package ledger

import (
	"errors"
	"fmt"
	"time"

	"bankmesh.org/internal/ids"
)

// Resolver finds the live account behind an endpoint. System endpoints are
// never resolved.
type Resolver interface {
	Account(ep Endpoint) (*Account, error)
}

// Journal is the append-only, cross-bank transaction log.
type Journal struct {
	seq      uint64
	txs      []Transaction
	reverted map[uint64]struct{}
	idem     map[string]Transaction // idemKey -> tx
}

func NewJournal() *Journal {
	return &Journal{
		reverted: make(map[uint64]struct{}),
		idem:     make(map[string]Transaction),
	}
}

// Post validates both endpoints, applies the balance changes and appends the
// entry. With enforce=false the source may go negative. Nothing is mutated
// when an error is returned.
func (j *Journal) Post(r Resolver, tx Transaction, enforce bool) (Transaction, error) {
	if tx.Src == tx.Dst || (tx.Src.IsSystem() && tx.Dst.IsSystem()) {
		return Transaction{}, ErrSelfTransfer
	}
	if !tx.Amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	if tx.IdempotencyKey != "" {
		if prev, ok := j.idem[tx.IdempotencyKey]; ok {
			return prev, nil
		}
	}

	var src, dst *Account
	var err error
	if !tx.Src.IsSystem() {
		if src, err = r.Account(tx.Src); err != nil {
			return Transaction{}, fmt.Errorf("source %s: %w", tx.Src, err)
		}
	}
	if !tx.Dst.IsSystem() {
		if dst, err = r.Account(tx.Dst); err != nil {
			return Transaction{}, fmt.Errorf("destination %s: %w", tx.Dst, err)
		}
	}
	if enforce && src != nil && src.Balance < tx.Amount {
		return Transaction{}, ErrInsufficientFunds
	}
	id, err := ids.Stamp(tx.PostedAt)
	if err != nil {
		return Transaction{}, fmt.Errorf("stamp entry at %s: %w", tx.PostedAt, err)
	}

	if src != nil {
		src.Balance -= tx.Amount
	}
	if dst != nil {
		dst.Balance += tx.Amount
	}

	j.seq++
	tx.Sequence = j.seq
	tx.ID = id
	j.txs = append(j.txs, tx)
	if tx.IdempotencyKey != "" {
		j.idem[tx.IdempotencyKey] = tx
	}
	return tx, nil
}

// RevertLast undoes the most recent entry that is neither a reversal nor
// already reverted, by posting its inverse without a balance check.
// Repeated calls walk further back through the journal. Entries touching an
// account that has since been closed cannot be undone and are stepped over.
func (j *Journal) RevertLast(r Resolver, at time.Time) (Transaction, error) {
	for i := len(j.txs) - 1; i >= 0; i-- {
		orig := j.txs[i]
		if orig.Reverts != 0 {
			continue
		}
		if _, done := j.reverted[orig.Sequence]; done {
			continue
		}
		inv := orig.Inverse()
		inv.Kind = KindRevert
		inv.PostedAt = at
		inv.Reverts = orig.Sequence
		posted, err := j.Post(r, inv, false)
		if errors.Is(err, ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return Transaction{}, err
		}
		j.reverted[orig.Sequence] = struct{}{}
		return posted, nil
	}
	return Transaction{}, ErrNothingToRevert
}

// List returns up to limit entries with Sequence > after and the last
// returned sequence for cursoring.
func (j *Journal) List(limit int, after uint64) ([]Transaction, uint64) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var res []Transaction
	var last uint64
	for _, tx := range j.txs {
		if tx.Sequence <= after {
			continue
		}
		res = append(res, tx)
		last = tx.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last
}

func (j *Journal) Len() int { return len(j.txs) }

// JournalState is the serializable form of Journal.
type JournalState struct {
	Transactions []Transaction `json:"transactions"`
	Reverted     []uint64      `json:"reverted,omitempty"`
}

func (j *Journal) Export() JournalState {
	st := JournalState{Transactions: append([]Transaction(nil), j.txs...)}
	for _, tx := range j.txs {
		if _, ok := j.reverted[tx.Sequence]; ok {
			st.Reverted = append(st.Reverted, tx.Sequence)
		}
	}
	return st
}

// RestoreJournal rebuilds a journal. Balances are not replayed; they are
// restored with the accounts.
func RestoreJournal(st JournalState) (*Journal, error) {
	j := NewJournal()
	for _, tx := range st.Transactions {
		if tx.Sequence <= j.seq {
			return nil, fmt.Errorf("restore journal: sequence %d not increasing", tx.Sequence)
		}
		j.seq = tx.Sequence
		j.txs = append(j.txs, tx)
		if tx.IdempotencyKey != "" {
			j.idem[tx.IdempotencyKey] = tx
		}
	}
	for _, seq := range st.Reverted {
		j.reverted[seq] = struct{}{}
	}
	return j, nil
}
