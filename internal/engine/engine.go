// Package engine is the multi-bank financial core: it owns every bank's
// accounts and products, the shared journal, payroll and the virtual clock,
// and serializes all of them behind a single lock.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bankmesh.org/internal/audit"
	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/clock"
	"bankmesh.org/internal/credit"
	"bankmesh.org/internal/deposit"
	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/obs"
	"bankmesh.org/internal/payroll"
)

// DefaultPromoBalance is credited to every newly opened account.
const DefaultPromoBalance ledger.Money = 1334

// Publisher receives every posted journal entry. It must not block.
type Publisher interface {
	Publish(tx ledger.Transaction)
}

type BankInfo struct {
	BIK     ledger.BankID `json:"bik"`
	Name    string        `json:"name"`
	Address string        `json:"address"`
}

type bank struct {
	info     BankInfo
	accounts *ledger.Accounts
	deposits *deposit.Book
	credits  *credit.Book
}

type Engine struct {
	mu          sync.Mutex
	clock       *clock.Clock
	banks       map[ledger.BankID]*bank
	journal     *ledger.Journal
	payroll     *payroll.Service
	promo       ledger.Money
	depositRate uint8
	log         *logrus.Entry
	pubs        []Publisher

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Engine)

func WithClock(c *clock.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithLogger(l *logrus.Entry) Option { return func(e *Engine) { e.log = l } }

// WithPublisher adds a sink for posted entries. May be given more than once.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.pubs = append(e.pubs, p) }
}

func WithPromoBalance(m ledger.Money) Option { return func(e *Engine) { e.promo = m } }

// WithDepositRate sets the yearly percent used when a deposit is opened
// without an explicit rate.
func WithDepositRate(rate uint8) Option {
	return func(e *Engine) {
		if rate > 0 {
			e.depositRate = rate
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		banks:       make(map[ledger.BankID]*bank),
		journal:     ledger.NewJournal(),
		payroll:     payroll.New(),
		promo:       DefaultPromoBalance,
		depositRate: deposit.DefaultRate,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = clock.New()
	}
	if e.log == nil {
		e.log = obs.Component("engine")
	}
	return e
}

// AddBank registers a bank with an empty ledger.
func (e *Engine) AddBank(info BankInfo) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.banks[info.BIK]; ok {
		return fmt.Errorf("bank %d: %w", info.BIK, ledger.ErrBankExists)
	}
	e.banks[info.BIK] = e.newBank(info)
	return nil
}

func (e *Engine) newBank(info BankInfo) *bank {
	log := e.log.WithField("bik", info.BIK)
	return &bank{
		info:     info,
		accounts: ledger.NewAccounts(e.promo),
		deposits: deposit.NewBook(log),
		credits:  credit.NewBook(log),
	}
}

// Banks lists the registered banks ordered by BIK.
func (e *Engine) Banks() []BankInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]BankInfo, 0, len(e.banks))
	for _, b := range e.banks {
		out = append(out, b.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BIK < out[j].BIK })
	return out
}

// Now reads the engine clock.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// AdvanceClock fast-forwards the virtual clock and wakes the scheduler.
func (e *Engine) AdvanceClock(ctx context.Context, p auth.Principal, t time.Time) error {
	if err := p.Require(auth.RoleAdministrator); err != nil {
		return err
	}
	e.mu.Lock()
	err := e.clock.Advance(t)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.signal()
	e.audit(ctx, p, "clock.advanced", map[string]any{"to": t.UTC()})
	return nil
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Wakeups delivers a signal whenever the clock is advanced.
func (e *Engine) Wakeups() <-chan struct{} { return e.wake }

// Done is closed once the engine is shut down.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Close stops background work bound to the engine. It is idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

func (e *Engine) bank(bik ledger.BankID) (*bank, error) {
	b, ok := e.banks[bik]
	if !ok {
		return nil, fmt.Errorf("bank %d: %w", bik, ledger.ErrBankNotFound)
	}
	return b, nil
}

// account resolves endpoints for the journal. Callers hold e.mu.
func (e *Engine) account(ep ledger.Endpoint) (*ledger.Account, error) {
	b, err := e.bank(ep.BankID)
	if err != nil {
		return nil, err
	}
	acc, ok := b.accounts.Lookup(ep.AccountID)
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return acc, nil
}

type resolver struct{ e *Engine }

func (r resolver) Account(ep ledger.Endpoint) (*ledger.Account, error) { return r.e.account(ep) }

// post books tx under the current clock. Callers hold e.mu.
func (e *Engine) post(tx ledger.Transaction, kind ledger.Kind, enforce bool) (ledger.Transaction, error) {
	tx.Kind = kind
	tx.PostedAt = e.clock.Now()
	before := e.journal.Len()
	posted, err := e.journal.Post(resolver{e}, tx, enforce)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if e.journal.Len() > before {
		e.published(posted)
	}
	return posted, nil
}

func (e *Engine) published(tx ledger.Transaction) {
	obs.TransactionPosted(string(tx.Kind))
	for _, p := range e.pubs {
		p.Publish(tx)
	}
}

func (e *Engine) audit(ctx context.Context, p auth.Principal, event string, fields map[string]any) {
	if _, ok := auth.PrincipalFromContext(ctx); !ok {
		ctx = auth.ContextWithPrincipal(ctx, p)
	}
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		e.log.WithError(err).Warn("audit log failed")
	}
}
