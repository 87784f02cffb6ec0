package engine

import (
	"context"

	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/credit"
	"bankmesh.org/internal/deposit"
	"bankmesh.org/internal/ledger"
)

// DepositRequest opens a deposit funded from one of the caller's accounts.
// Zero Rate selects the engine default.
type DepositRequest struct {
	Account ledger.AccountID `json:"account"`
	Amount  ledger.Money     `json:"amount"`
	Months  int              `json:"months"`
	Rate    uint8            `json:"rate,omitempty"`
}

// OpenDeposit moves Amount from the caller's account into a new deposit.
func (e *Engine) OpenDeposit(ctx context.Context, p auth.Principal, bik ledger.BankID, req DepositRequest) (deposit.Deposit, error) {
	if err := p.Require(auth.RoleClient); err != nil {
		return deposit.Deposit{}, err
	}
	if req.Months <= 0 {
		return deposit.Deposit{}, deposit.ErrInvalidTerm
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return deposit.Deposit{}, err
	}
	if err := b.accounts.Validate(req.Account, p.Login); err != nil {
		return deposit.Deposit{}, err
	}
	rate := req.Rate
	if rate == 0 {
		rate = e.depositRate
	}
	tx, err := e.post(ledger.Transaction{
		Src:    ledger.Endpoint{BankID: bik, AccountID: req.Account},
		Dst:    ledger.Endpoint{BankID: bik, AccountID: ledger.SystemAccount},
		Amount: req.Amount,
	}, ledger.KindDepositOpen, true)
	if err != nil {
		return deposit.Deposit{}, err
	}
	d := deposit.New(req.Amount, rate, tx.PostedAt, req.Months)
	idx := b.deposits.Add(p.Login, d)
	e.audit(ctx, p, "deposit.opened", map[string]any{"bik": bik, "index": idx, "amount": int64(req.Amount)})
	return d, nil
}

func (e *Engine) Deposits(ctx context.Context, p auth.Principal, bik ledger.BankID) ([]deposit.Deposit, error) {
	if err := p.Require(auth.RoleClient); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return nil, err
	}
	return b.deposits.List(p.Login), nil
}

// WithdrawDeposit pays a matured deposit out to the caller's account dst.
func (e *Engine) WithdrawDeposit(ctx context.Context, p auth.Principal, bik ledger.BankID, idx int, dst ledger.AccountID) (ledger.Money, error) {
	if err := p.Require(auth.RoleClient); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return 0, err
	}
	if err := b.accounts.Validate(dst, p.Login); err != nil {
		return 0, err
	}
	d, err := b.deposits.Withdraw(p.Login, idx, e.clock.Now())
	if err != nil {
		return 0, err
	}
	if _, err := e.post(ledger.Transaction{
		Src:    ledger.Endpoint{BankID: bik, AccountID: ledger.SystemAccount},
		Dst:    ledger.Endpoint{BankID: bik, AccountID: dst},
		Amount: d.CurrentAmount,
	}, ledger.KindDepositWithdraw, true); err != nil {
		b.deposits.Reinsert(p.Login, idx, d)
		return 0, err
	}
	e.audit(ctx, p, "deposit.withdrawn", map[string]any{"bik": bik, "index": idx, "amount": int64(d.CurrentAmount)})
	return d.CurrentAmount, nil
}

// RequestCredit queues a credit application for manager review.
func (e *Engine) RequestCredit(ctx context.Context, p auth.Principal, bik ledger.BankID, params credit.Params) error {
	if err := p.Require(auth.RoleClient); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return err
	}
	if err := b.accounts.Validate(params.SrcAccount, p.Login); err != nil {
		return err
	}
	if err := b.credits.Submit(p.Login, params); err != nil {
		return err
	}
	e.audit(ctx, p, "credit.requested", map[string]any{"bik": bik, "amount": int64(params.Amount), "term": params.Term.String()})
	return nil
}

func (e *Engine) Credits(ctx context.Context, p auth.Principal, bik ledger.BankID) ([]credit.Credit, error) {
	if err := p.Require(auth.RoleClient); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return nil, err
	}
	return b.credits.List(p.Login), nil
}

func (e *Engine) PendingCredits(ctx context.Context, p auth.Principal, bik ledger.BankID) ([]credit.Request, error) {
	if err := p.Require(auth.RoleManager); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return nil, err
	}
	return b.credits.Pending(), nil
}

// AcceptCredit disburses the pending request at idx and starts its
// repayment schedule. The pending list is swap-removed.
func (e *Engine) AcceptCredit(ctx context.Context, p auth.Principal, bik ledger.BankID, idx int) (credit.Credit, error) {
	if err := p.Require(auth.RoleManager); err != nil {
		return credit.Credit{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.bank(bik)
	if err != nil {
		return credit.Credit{}, err
	}
	req, err := b.credits.PendingAt(idx)
	if err != nil {
		return credit.Credit{}, err
	}
	tx, err := e.post(ledger.Transaction{
		Src:    ledger.Endpoint{BankID: bik, AccountID: ledger.SystemAccount},
		Dst:    ledger.Endpoint{BankID: bik, AccountID: req.Params.SrcAccount},
		Amount: req.Params.Amount,
	}, ledger.KindCreditDisburse, false)
	if err != nil {
		return credit.Credit{}, err
	}
	c, err := b.credits.Accept(idx, tx.PostedAt)
	if err != nil {
		return credit.Credit{}, err
	}
	e.audit(ctx, p, "credit.accepted", map[string]any{"bik": bik, "owner": req.Owner, "amount": int64(req.Params.Amount), "monthly_pay": int64(c.MonthlyPay)})
	return c, nil
}
