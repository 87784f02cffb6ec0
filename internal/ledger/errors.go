package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrOwnershipMismatch  = errors.New("account belongs to another client")
	ErrAccountUnavailable = errors.New("account unavailable")
	ErrAccountFrozen      = fmt.Errorf("%w: frozen", ErrAccountUnavailable)
	ErrAccountBlocked     = fmt.Errorf("%w: blocked", ErrAccountUnavailable)
	ErrAccountInUse       = errors.New("account is referenced by a credit")
	ErrBalanceNotZero     = errors.New("account balance is not zero")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("invalid amount (must be > 0)")
	ErrSelfTransfer       = fmt.Errorf("%w: source and destination are the same", ErrInvalidAmount)
	ErrBankNotFound       = errors.New("bank not found")
	ErrBankExists         = errors.New("bank already registered")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrNothingToRevert    = errors.New("no transaction to revert")
)
