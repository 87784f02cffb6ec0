package engine

import (
	"context"

	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/payroll"
)

// RequestSalary asks enterprise to pay the caller's salary into account.
func (e *Engine) RequestSalary(ctx context.Context, p auth.Principal, enterprise string, account ledger.Endpoint) error {
	if err := p.Require(auth.RoleClient); err != nil {
		return err
	}
	if enterprise == "" {
		return auth.ErrInvalidInput
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.validateOwned(account, p.Login); err != nil {
		return err
	}
	e.payroll.Submit(payroll.Request{Enterprise: enterprise, Client: p.Login, Account: account})
	e.audit(ctx, p, "salary.requested", map[string]any{"enterprise": enterprise, "account": account.String()})
	return nil
}

// SalaryRequests lists enrollment requests addressed to the calling enterprise.
func (e *Engine) SalaryRequests(ctx context.Context, p auth.Principal) ([]payroll.Request, error) {
	if err := p.Require(auth.RoleEnterprise); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.payroll.Requests(p.Login), nil
}

// InitSalaryProject creates or replaces the caller's project, paid from account.
func (e *Engine) InitSalaryProject(ctx context.Context, p auth.Principal, account ledger.Endpoint) error {
	if err := p.Require(auth.RoleEnterprise); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.validateOwned(account, p.Login); err != nil {
		return err
	}
	e.payroll.InitProject(p.Login, account)
	e.audit(ctx, p, "salary.project_initialized", map[string]any{"account": account.String()})
	return nil
}

func (e *Engine) AcceptSalaryProject(ctx context.Context, p auth.Principal, enterprise string) error {
	if err := p.Require(auth.RoleManager); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.payroll.AcceptProject(enterprise); err != nil {
		return err
	}
	e.audit(ctx, p, "salary.project_accepted", map[string]any{"enterprise": enterprise})
	return nil
}

func (e *Engine) SalaryProject(ctx context.Context, p auth.Principal) (payroll.Project, error) {
	if err := p.Require(auth.RoleEnterprise); err != nil {
		return payroll.Project{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.payroll.Project(p.Login)
}

// DecideSalaryRequest accepts (with salary) or rejects the request at idx.
func (e *Engine) DecideSalaryRequest(ctx context.Context, p auth.Principal, idx int, accept bool, salary ledger.Money) error {
	if err := p.Require(auth.RoleEnterprise); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.payroll.Decide(p.Login, idx, accept, salary); err != nil {
		return err
	}
	e.audit(ctx, p, "salary.request_decided", map[string]any{"index": idx, "accepted": accept, "salary": int64(salary)})
	return nil
}

// PaySalaries pays every employee of the caller's accepted project. Nothing
// is posted unless the project account covers the whole payroll.
func (e *Engine) PaySalaries(ctx context.Context, p auth.Principal) ([]ledger.Transaction, error) {
	if err := p.Require(auth.RoleEnterprise); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	proj, err := e.payroll.Project(p.Login)
	if err != nil {
		return nil, err
	}
	if !proj.Accepted {
		return nil, payroll.ErrProjectNotAccepted
	}
	if err := e.validateOwned(proj.Account, p.Login); err != nil {
		return nil, err
	}
	src, err := e.account(proj.Account)
	if err != nil {
		return nil, err
	}
	if src.Balance < proj.Payroll() {
		return nil, ledger.ErrInsufficientFunds
	}
	for _, emp := range proj.Employees {
		if emp.Account == proj.Account {
			return nil, ledger.ErrSelfTransfer
		}
		if _, err := e.account(emp.Account); err != nil {
			return nil, err
		}
	}
	out := make([]ledger.Transaction, 0, len(proj.Employees))
	for _, emp := range proj.Employees {
		tx, err := e.post(ledger.Transaction{Src: proj.Account, Dst: emp.Account, Amount: emp.Salary}, ledger.KindSalary, true)
		if err != nil {
			e.log.WithError(err).WithField("employee", emp.Client).Error("salary payment failed")
			return out, err
		}
		out = append(out, tx)
	}
	e.audit(ctx, p, "salary.paid", map[string]any{"employees": len(out), "total": int64(proj.Payroll())})
	return out, nil
}

// validateOwned checks that login owns the open account behind ep. Callers hold e.mu.
func (e *Engine) validateOwned(ep ledger.Endpoint, login string) error {
	b, err := e.bank(ep.BankID)
	if err != nil {
		return err
	}
	return b.accounts.Validate(ep.AccountID, login)
}
