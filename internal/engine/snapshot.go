package engine

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"bankmesh.org/internal/clock"
	"bankmesh.org/internal/credit"
	"bankmesh.org/internal/deposit"
	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/payroll"
)

// Snapshot is a consistent copy of the whole engine state.
type Snapshot struct {
	TakenAt time.Time           `json:"taken_at"`
	Clock   clock.State         `json:"clock"`
	Banks   []BankSnapshot      `json:"banks"`
	Journal ledger.JournalState `json:"journal"`
	Payroll payroll.State       `json:"payroll"`
}

type BankSnapshot struct {
	Info     BankInfo                     `json:"info"`
	Accounts ledger.AccountsState         `json:"accounts"`
	Deposits map[string][]deposit.Deposit `json:"deposits"`
	Credits  credit.State                 `json:"credits"`
}

// Export copies the engine state under the lock.
func (e *Engine) Export() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		TakenAt: e.clock.Now(),
		Clock:   e.clock.Export(),
		Journal: e.journal.Export(),
		Payroll: e.payroll.Export(),
	}
	for _, bik := range e.bikOrder() {
		b := e.banks[bik]
		snap.Banks = append(snap.Banks, BankSnapshot{
			Info:     b.info,
			Accounts: b.accounts.Export(),
			Deposits: b.deposits.Export(),
			Credits:  b.credits.Export(),
		})
	}
	return snap
}

// Import replaces the engine state with snap. The current state is kept if
// snap is inconsistent.
func (e *Engine) Import(snap Snapshot) error {
	banks := make(map[ledger.BankID]*bank, len(snap.Banks))
	for _, bs := range snap.Banks {
		if _, dup := banks[bs.Info.BIK]; dup {
			return fmt.Errorf("import bank %d: %w", bs.Info.BIK, ledger.ErrBankExists)
		}
		accs, err := ledger.RestoreAccounts(e.promo, bs.Accounts)
		if err != nil {
			return fmt.Errorf("import bank %d: %w", bs.Info.BIK, err)
		}
		log := e.log.WithField("bik", bs.Info.BIK)
		banks[bs.Info.BIK] = &bank{
			info:     bs.Info,
			accounts: accs,
			deposits: deposit.RestoreBook(log, bs.Deposits),
			credits:  credit.RestoreBook(log, bs.Credits),
		}
	}
	journal, err := ledger.RestoreJournal(snap.Journal)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.banks = banks
	e.journal = journal
	e.payroll = payroll.Restore(snap.Payroll)
	e.clock.Restore(snap.Clock)
	e.log.WithFields(logrus.Fields{
		"banks":        len(banks),
		"transactions": journal.Len(),
		"taken_at":     snap.TakenAt,
	}).Info("engine state restored")
	return nil
}
