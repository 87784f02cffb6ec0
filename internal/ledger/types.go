package ledger

import (
	"fmt"
	"strconv"
	"time"
)

// Money is represented in minor units (e.g., kopecks). No floats.
type Money int64

func (m Money) IsPositive() bool  { return m > 0 }
func (m Money) IsNegative() bool  { return m < 0 }
func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Mul(n int64) Money { return m * Money(n) }
func (m Money) MinorUnits() int64 { return int64(m) }

func (m Money) Cmp(o Money) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	}
	return 0
}

// String renders the amount with two fractional digits, e.g. "-12.34".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// BankID is the bank identification code (BIK).
type BankID uint64

// AccountID is unique within one bank. Zero is the system pseudo-account.
type AccountID uint64

// SystemAccount stands in for money entering or leaving the banking system.
const SystemAccount AccountID = 0

func (id AccountID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Status gates which operations an account may take part in.
type Status uint8

const (
	StatusNormal Status = iota
	StatusFrozen
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusFrozen:
		return "frozen"
	case StatusBlocked:
		return "blocked"
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*s = StatusNormal
	case "frozen":
		*s = StatusFrozen
	case "blocked":
		*s = StatusBlocked
	default:
		return fmt.Errorf("unknown account status %q", b)
	}
	return nil
}

type Account struct {
	ID      AccountID `json:"id"`
	Balance Money     `json:"balance"`
	Status  Status    `json:"status"`
}

// Endpoint addresses an account across banks.
type Endpoint struct {
	BankID    BankID    `json:"bank_id"`
	AccountID AccountID `json:"account_id"`
}

func (e Endpoint) IsSystem() bool { return e.AccountID == SystemAccount }

func (e Endpoint) String() string {
	return strconv.FormatUint(uint64(e.BankID), 10) + "/" + e.AccountID.String()
}

// Kind records what produced a journal entry.
type Kind string

const (
	KindTransfer        Kind = "transfer"
	KindUnprotected     Kind = "unprotected"
	KindRevert          Kind = "revert"
	KindDepositOpen     Kind = "deposit_open"
	KindDepositWithdraw Kind = "deposit_withdraw"
	KindCreditDisburse  Kind = "credit_disburse"
	KindCreditPayment   Kind = "credit_payment"
	KindSalary          Kind = "salary"
)

// Transaction is one posted movement of money between two endpoints.
type Transaction struct {
	ID             string    `json:"id"`
	Sequence       uint64    `json:"sequence"` // monotonic sequence number
	PostedAt       time.Time `json:"posted_at"`
	Kind           Kind      `json:"kind"`
	Src            Endpoint  `json:"src"`
	Dst            Endpoint  `json:"dst"`
	Amount         Money     `json:"amount"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Reverts        uint64    `json:"reverts,omitempty"` // sequence of the reverted entry
}

// Inverse swaps source and destination.
func (t Transaction) Inverse() Transaction {
	return Transaction{Src: t.Dst, Dst: t.Src, Amount: t.Amount}
}
