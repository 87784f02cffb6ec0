package engine

import (
	"context"

	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/ledger"
)

// Account holders are clients and enterprises funding salary projects.
var holders = []auth.Role{auth.RoleClient, auth.RoleEnterprise}

// OpenAccount opens an account for the caller at bik. First-time clients
// are registered with the bank's deposit book.
func (e *Engine) OpenAccount(ctx context.Context, p auth.Principal, bik ledger.BankID) (ledger.AccountID, error) {
	if err := p.Require(holders...); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return 0, err
	}
	if !b.accounts.HasClient(p.Login) {
		b.deposits.AddClient(p.Login)
	}
	id := b.accounts.Open(p.Login)
	e.audit(ctx, p, "account.opened", map[string]any{"bik": bik, "account": id})
	return id, nil
}

// CloseAccount closes an account owned by the caller. Accounts still
// referenced by a pending credit request or an unfinished credit stay open.
func (e *Engine) CloseAccount(ctx context.Context, p auth.Principal, bik ledger.BankID, id ledger.AccountID) error {
	if err := p.Require(holders...); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return err
	}
	if err := b.accounts.Validate(id, p.Login); err != nil {
		return err
	}
	if b.credits.References(id) {
		return ledger.ErrAccountInUse
	}
	if err := b.accounts.Close(id, p.Login); err != nil {
		return err
	}
	e.audit(ctx, p, "account.closed", map[string]any{"bik": bik, "account": id})
	return nil
}

// Accounts lists the caller's accounts at bik.
func (e *Engine) Accounts(ctx context.Context, p auth.Principal, bik ledger.BankID) ([]ledger.Account, error) {
	if err := p.Require(holders...); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return nil, err
	}
	return b.accounts.List(p.Login), nil
}

// SetAccountStatus freezes, blocks or restores any account at bik.
func (e *Engine) SetAccountStatus(ctx context.Context, p auth.Principal, bik ledger.BankID, id ledger.AccountID, status ledger.Status) error {
	if err := p.Require(auth.RoleManager); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return err
	}
	if err := b.accounts.SetStatus(id, status); err != nil {
		return err
	}
	e.audit(ctx, p, "account.status_changed", map[string]any{"bik": bik, "account": id, "status": status.String()})
	return nil
}

// Transfer moves amount from the caller's account at bik to dst, which may
// live in any bank. The balance check applies. A non-empty idemKey makes
// retries return the original entry.
func (e *Engine) Transfer(ctx context.Context, p auth.Principal, bik ledger.BankID, from ledger.AccountID, dst ledger.Endpoint, amount ledger.Money, idemKey string) (ledger.Transaction, error) {
	if err := p.Require(holders...); err != nil {
		return ledger.Transaction{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := b.accounts.Validate(from, p.Login); err != nil {
		return ledger.Transaction{}, err
	}
	tx, err := e.post(ledger.Transaction{
		Src:            ledger.Endpoint{BankID: bik, AccountID: from},
		Dst:            dst,
		Amount:         amount,
		IdempotencyKey: scopedKey(p.Login, idemKey),
	}, ledger.KindTransfer, true)
	if err != nil {
		return ledger.Transaction{}, err
	}
	e.audit(ctx, p, "transfer.posted", map[string]any{"sequence": tx.Sequence, "amount": int64(tx.Amount)})
	return tx, nil
}

func scopedKey(login, key string) string {
	if key == "" {
		return ""
	}
	return login + ":" + key
}

// TransferUnprotected posts tx without the balance check. Staff only.
func (e *Engine) TransferUnprotected(ctx context.Context, p auth.Principal, tx ledger.Transaction) (ledger.Transaction, error) {
	if err := p.Require(auth.RoleManager, auth.RoleEnterprise); err != nil {
		return ledger.Transaction{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	posted, err := e.post(ledger.Transaction{Src: tx.Src, Dst: tx.Dst, Amount: tx.Amount}, ledger.KindUnprotected, false)
	if err != nil {
		return ledger.Transaction{}, err
	}
	e.audit(ctx, p, "transfer.unprotected", map[string]any{"sequence": posted.Sequence, "amount": int64(posted.Amount)})
	return posted, nil
}

// RevertLast undoes the most recent not-yet-reverted entry.
func (e *Engine) RevertLast(ctx context.Context, p auth.Principal) (ledger.Transaction, error) {
	if err := p.Require(auth.RoleOperator); err != nil {
		return ledger.Transaction{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	tx, err := e.journal.RevertLast(resolver{e}, e.clock.Now())
	if err != nil {
		return ledger.Transaction{}, err
	}
	e.published(tx)
	e.audit(ctx, p, "transaction.reverted", map[string]any{"sequence": tx.Sequence, "reverts": tx.Reverts})
	return tx, nil
}

// Transactions pages through the journal.
func (e *Engine) Transactions(ctx context.Context, p auth.Principal, limit int, after uint64) ([]ledger.Transaction, uint64, error) {
	if err := p.Require(auth.RoleOperator, auth.RoleManager, auth.RoleAdministrator); err != nil {
		return nil, 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	txs, next := e.journal.List(limit, after)
	return txs, next, nil
}
