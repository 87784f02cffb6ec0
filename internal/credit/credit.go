// Package credit handles loan requests, approval and monthly amortization.
package credit

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bankmesh.org/internal/clock"
	"bankmesh.org/internal/ledger"
)

type Params struct {
	SrcAccount   ledger.AccountID `json:"src_account"`
	InterestRate uint8            `json:"interest_rate"` // percent per month
	Term         Term             `json:"term"`
	Amount       ledger.Money     `json:"amount"`
}

func (p Params) Validate() error {
	if !p.Amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	if !p.Term.Valid() {
		return ErrInvalidTerm
	}
	return nil
}

type Request struct {
	Owner  string `json:"owner"`
	Params Params `json:"params"`
}

type Credit struct {
	Params     Params       `json:"params"`
	MonthlyPay ledger.Money `json:"monthly_pay"`
	FirstPay   time.Time    `json:"first_pay"`
	LastPay    time.Time    `json:"last_pay"` // paid up to here
}

func (c Credit) MonthsPaid() int { return clock.MonthsBetween(c.FirstPay, c.LastPay) }
func (c Credit) Remaining() int  { return c.Params.Term.Months() - c.MonthsPaid() }
func (c Credit) Finished() bool  { return c.Remaining() <= 0 }

// MonthlyPayment is the annuity installment amount*(r + r/((1+r)^n - 1)),
// rounded up to whole minor units. A zero rate splits the principal evenly.
func MonthlyPayment(p Params) ledger.Money {
	amount := decimal.NewFromInt(int64(p.Amount))
	n := decimal.NewFromInt(int64(p.Term.Months()))
	if p.InterestRate == 0 {
		return ledger.Money(amount.Div(n).Ceil().IntPart())
	}
	one := decimal.NewFromInt(1)
	r := decimal.NewFromInt(int64(p.InterestRate)).Div(decimal.NewFromInt(100))
	growth := one.Add(r).Pow(n).Sub(one)
	return ledger.Money(amount.Mul(r.Add(r.Div(growth))).Ceil().IntPart())
}

// Payment is one batch of installments owed on a credit.
type Payment struct {
	Owner   string           `json:"owner"`
	Index   int              `json:"index"`
	Account ledger.AccountID `json:"account"`
	Months  int              `json:"months"`
	Amount  ledger.Money     `json:"amount"`
}

// Poster books a payment. Settlement happens only if it returns nil.
type Poster func(Payment) error

// Book holds one bank's pending requests and accepted credits.
type Book struct {
	pending  []Request
	accepted map[string][]Credit
	log      *logrus.Entry
}

func NewBook(log *logrus.Entry) *Book {
	return &Book{accepted: make(map[string][]Credit), log: log}
}

func (b *Book) Submit(owner string, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	b.pending = append(b.pending, Request{Owner: owner, Params: p})
	return nil
}

func (b *Book) Pending() []Request {
	return append([]Request(nil), b.pending...)
}

func (b *Book) PendingAt(idx int) (Request, error) {
	if idx < 0 || idx >= len(b.pending) {
		return Request{}, ledger.ErrIndexOutOfRange
	}
	return b.pending[idx], nil
}

// Accept approves the pending request at idx. The request list is
// swap-removed, so later indices may shift.
func (b *Book) Accept(idx int, now time.Time) (Credit, error) {
	req, err := b.PendingAt(idx)
	if err != nil {
		return Credit{}, err
	}
	last := len(b.pending) - 1
	b.pending[idx] = b.pending[last]
	b.pending = b.pending[:last]

	first := clock.AddMonths(now, 1)
	c := Credit{
		Params:     req.Params,
		MonthlyPay: MonthlyPayment(req.Params),
		FirstPay:   first,
		LastPay:    first,
	}
	b.accepted[req.Owner] = append(b.accepted[req.Owner], c)
	return c, nil
}

func (b *Book) List(owner string) []Credit {
	return append([]Credit(nil), b.accepted[owner]...)
}

// References reports whether a pending request or an unfinished credit
// draws on account.
func (b *Book) References(account ledger.AccountID) bool {
	for _, r := range b.pending {
		if r.Params.SrcAccount == account {
			return true
		}
	}
	for _, list := range b.accepted {
		for _, c := range list {
			if c.Params.SrcAccount == account && !c.Finished() {
				return true
			}
		}
	}
	return false
}

// Due lists the installments owed as of now, in owner order.
func (b *Book) Due(now time.Time) []Payment {
	var out []Payment
	for _, owner := range b.owners() {
		for i, c := range b.accepted[owner] {
			since := clock.MonthsBetween(c.FirstPay, now) - c.MonthsPaid()
			if since <= 0 {
				continue
			}
			months := min(since, c.Remaining())
			if months <= 0 {
				continue
			}
			out = append(out, Payment{
				Owner:   owner,
				Index:   i,
				Account: c.Params.SrcAccount,
				Months:  months,
				Amount:  c.MonthlyPay.Mul(int64(months)),
			})
		}
	}
	return out
}

// Settle records that p was booked. LastPay is recomputed from FirstPay.
func (b *Book) Settle(p Payment) error {
	list := b.accepted[p.Owner]
	if p.Index < 0 || p.Index >= len(list) {
		return fmt.Errorf("settle credit %s/%d: %w", p.Owner, p.Index, ledger.ErrIndexOutOfRange)
	}
	c := &list[p.Index]
	c.LastPay = clock.AddMonths(c.FirstPay, c.MonthsPaid()+p.Months)
	return nil
}

// Accrue books every due payment through post and returns how many settled.
// A failed post is logged and retried on the next pass.
func (b *Book) Accrue(now time.Time, post Poster) int {
	settled := 0
	for _, p := range b.Due(now) {
		if err := post(p); err != nil {
			b.log.WithError(err).WithFields(logrus.Fields{
				"owner":   p.Owner,
				"index":   p.Index,
				"account": p.Account,
				"amount":  p.Amount,
			}).Error("credit payment failed")
			continue
		}
		if err := b.Settle(p); err != nil {
			b.log.WithError(err).Error("credit settle failed")
			continue
		}
		settled++
	}
	return settled
}

func (b *Book) owners() []string {
	out := make([]string, 0, len(b.accepted))
	for owner := range b.accepted {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

// State is the serializable form of Book.
type State struct {
	Pending  []Request           `json:"pending"`
	Accepted map[string][]Credit `json:"accepted"`
}

func (b *Book) Export() State {
	st := State{
		Pending:  append([]Request(nil), b.pending...),
		Accepted: make(map[string][]Credit, len(b.accepted)),
	}
	for owner, list := range b.accepted {
		st.Accepted[owner] = append([]Credit(nil), list...)
	}
	return st
}

func RestoreBook(log *logrus.Entry, st State) *Book {
	b := NewBook(log)
	b.pending = append([]Request(nil), st.Pending...)
	for owner, list := range st.Accepted {
		b.accepted[owner] = append([]Credit(nil), list...)
	}
	return b
}
