package engine

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"bankmesh.org/internal/credit"
	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/obs"
)

// AccrualReport summarizes one accrual pass.
type AccrualReport struct {
	At       time.Time     `json:"at"`
	Deposits int           `json:"deposits"`
	Payments int           `json:"payments"`
	Failures int           `json:"failures"`
	Duration time.Duration `json:"duration"`
}

// Accrue runs an accrual pass at the clock's current time.
func (e *Engine) Accrue() AccrualReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accrue(e.clock.Now())
}

// RunAccrualPass runs an accrual pass as of now. Deposits compound before
// credit installments are collected, bank by bank in BIK order.
func (e *Engine) RunAccrualPass(now time.Time) AccrualReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accrue(now)
}

func (e *Engine) accrue(now time.Time) AccrualReport {
	start := time.Now()
	rep := AccrualReport{At: now}
	for _, bik := range e.bikOrder() {
		b := e.banks[bik]
		rep.Deposits += b.deposits.Accrue(now)

		due := len(b.credits.Due(now))
		paid := b.credits.Accrue(now, e.creditPoster(b, now))
		rep.Payments += paid
		rep.Failures += due - paid
	}
	rep.Duration = time.Since(start)
	obs.ObserveAccrual(rep.Duration, rep.Deposits, rep.Payments, rep.Failures)
	if rep.Deposits+rep.Payments+rep.Failures > 0 {
		e.log.WithFields(logrus.Fields{
			"at":       now,
			"deposits": rep.Deposits,
			"payments": rep.Payments,
			"failures": rep.Failures,
		}).Info("accrual pass")
	}
	return rep
}

// creditPoster books installments to the system account without a balance
// check. Accounts pushed below zero are reported, not refused.
func (e *Engine) creditPoster(b *bank, now time.Time) credit.Poster {
	return func(p credit.Payment) error {
		src := ledger.Endpoint{BankID: b.info.BIK, AccountID: p.Account}
		tx := ledger.Transaction{
			Src:      src,
			Dst:      ledger.Endpoint{BankID: b.info.BIK, AccountID: ledger.SystemAccount},
			Amount:   p.Amount,
			Kind:     ledger.KindCreditPayment,
			PostedAt: now,
		}
		before := e.journal.Len()
		posted, err := e.journal.Post(resolver{e}, tx, false)
		if err != nil {
			return err
		}
		if e.journal.Len() > before {
			e.published(posted)
		}
		if acc, err := e.account(src); err == nil && acc.Balance.IsNegative() {
			obs.CreditOverdrawn()
			e.log.WithFields(logrus.Fields{
				"bik":     b.info.BIK,
				"account": p.Account,
				"owner":   p.Owner,
				"balance": int64(acc.Balance),
			}).Warn("credit payment overdrew account")
		}
		return nil
	}
}

func (e *Engine) bikOrder() []ledger.BankID {
	out := make([]ledger.BankID, 0, len(e.banks))
	for bik := range e.banks {
		out = append(out, bik)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
