// Package deposit keeps term deposits per client and compounds their
// interest monthly.
package deposit

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bankmesh.org/internal/clock"
	"bankmesh.org/internal/ledger"
)

// DefaultRate is the yearly interest rate, in percent, applied when a
// deposit is opened without one.
const DefaultRate uint8 = 5

var (
	ErrNotMatured  = errors.New("deposit has not reached its end date")
	ErrInvalidTerm = errors.New("deposit term must be at least one month")
)

type Deposit struct {
	InterestRate  uint8        `json:"interest_rate"` // percent per year
	StartDate     time.Time    `json:"start_date"`
	LastUpdate    time.Time    `json:"last_update"`
	EndDate       time.Time    `json:"end_date"`
	InitialAmount ledger.Money `json:"initial_amount"`
	CurrentAmount ledger.Money `json:"current_amount"`
}

// New opens a deposit of amount for the given number of months.
func New(amount ledger.Money, rate uint8, start time.Time, months int) Deposit {
	return Deposit{
		InterestRate:  rate,
		StartDate:     start,
		LastUpdate:    start,
		EndDate:       clock.AddMonths(start, months),
		InitialAmount: amount,
		CurrentAmount: amount,
	}
}

func (d Deposit) Matured(now time.Time) bool { return !now.Before(d.EndDate) }

// accrue compounds the deposit up to min(now, EndDate). Months are counted
// from StartDate so repeated passes never drift. It returns the number of
// months applied, or a negative count when now lies behind LastUpdate.
func (d *Deposit) accrue(now time.Time) int {
	target := now
	if d.EndDate.Before(target) {
		target = d.EndDate
	}
	reached := clock.MonthsBetween(d.StartDate, target)
	done := clock.MonthsBetween(d.StartDate, d.LastUpdate)
	months := reached - done
	if months <= 0 {
		return months
	}
	d.CurrentAmount = Compound(d.CurrentAmount, d.InterestRate, months)
	d.LastUpdate = clock.AddMonths(d.StartDate, reached)
	return months
}

// Compound applies months of monthly compounding at rate percent per year,
// rounding down to whole minor units.
func Compound(amount ledger.Money, rate uint8, months int) ledger.Money {
	monthly := decimal.NewFromInt(int64(rate)).Div(decimal.NewFromInt(1200))
	factor := decimal.NewFromInt(1).Add(monthly).Pow(decimal.NewFromInt(int64(months)))
	return ledger.Money(decimal.NewFromInt(int64(amount)).Mul(factor).Floor().IntPart())
}

// Book holds one bank's deposits, keyed by owner login.
type Book struct {
	deposits map[string][]Deposit
	log      *logrus.Entry
}

func NewBook(log *logrus.Entry) *Book {
	return &Book{deposits: make(map[string][]Deposit), log: log}
}

// AddClient registers an owner with no deposits. It is a no-op for known owners.
func (b *Book) AddClient(owner string) {
	if _, ok := b.deposits[owner]; !ok {
		b.deposits[owner] = nil
	}
}

func (b *Book) Add(owner string, d Deposit) int {
	b.deposits[owner] = append(b.deposits[owner], d)
	return len(b.deposits[owner]) - 1
}

func (b *Book) List(owner string) []Deposit {
	return append([]Deposit(nil), b.deposits[owner]...)
}

// Withdraw removes a matured deposit and returns it compounded up to its
// end date, whether or not an accrual pass has caught up yet. Remaining
// deposits keep their order.
func (b *Book) Withdraw(owner string, idx int, now time.Time) (Deposit, error) {
	list := b.deposits[owner]
	if idx < 0 || idx >= len(list) {
		return Deposit{}, ledger.ErrIndexOutOfRange
	}
	d := list[idx]
	if !d.Matured(now) {
		return Deposit{}, ErrNotMatured
	}
	d.accrue(now)
	b.deposits[owner] = append(list[:idx:idx], list[idx+1:]...)
	return d, nil
}

// Reinsert puts a withdrawn deposit back at idx when the payout could not be posted.
func (b *Book) Reinsert(owner string, idx int, d Deposit) {
	list := b.deposits[owner]
	if idx > len(list) {
		idx = len(list)
	}
	out := make([]Deposit, 0, len(list)+1)
	out = append(out, list[:idx]...)
	out = append(out, d)
	b.deposits[owner] = append(out, list[idx:]...)
}

// Accrue brings every deposit up to now and returns how many changed.
func (b *Book) Accrue(now time.Time) int {
	updated := 0
	for _, owner := range b.owners() {
		list := b.deposits[owner]
		for i := range list {
			months := list[i].accrue(now)
			switch {
			case months > 0:
				updated++
			case months < 0:
				b.log.WithFields(logrus.Fields{
					"owner":       owner,
					"index":       i,
					"last_update": list[i].LastUpdate,
					"now":         now,
				}).Warn("deposit last update is ahead of now; skipping")
			}
		}
	}
	return updated
}

func (b *Book) owners() []string {
	out := make([]string, 0, len(b.deposits))
	for owner := range b.deposits {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

// Export returns a deep copy for snapshots.
func (b *Book) Export() map[string][]Deposit {
	out := make(map[string][]Deposit, len(b.deposits))
	for owner, list := range b.deposits {
		out[owner] = append([]Deposit(nil), list...)
	}
	return out
}

func RestoreBook(log *logrus.Entry, st map[string][]Deposit) *Book {
	b := NewBook(log)
	for owner, list := range st {
		b.deposits[owner] = append([]Deposit(nil), list...)
	}
	return b
}
