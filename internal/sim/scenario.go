package sim

import (
	"math/rand"
	"time"

	"bankmesh.org/internal/ledger"
)

// Account is one simulated holding: an account plus the token of its owner.
type Account struct {
	Owner    string
	Token    string
	Endpoint ledger.Endpoint
}

type Transfer struct {
	Owner  string
	Token  string
	From   ledger.Endpoint
	To     ledger.Endpoint
	Amount ledger.Money
}

// Generator draws random transfers between the known accounts. It is not
// safe for concurrent use; give each worker its own.
type Generator struct {
	accounts  []Account
	rnd       *rand.Rand
	minAmount ledger.Money
	maxAmount ledger.Money
}

func NewGenerator(seed int64, accounts []Account, minAmount, maxAmount ledger.Money) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if minAmount <= 0 {
		minAmount = 1
	}
	if maxAmount < minAmount {
		maxAmount = minAmount
	}
	return &Generator{
		accounts:  append([]Account(nil), accounts...),
		rnd:       rand.New(rand.NewSource(seed)),
		minAmount: minAmount,
		maxAmount: maxAmount,
	}
}

// NextTransfer picks distinct source and destination accounts.
func (g *Generator) NextTransfer() Transfer {
	if len(g.accounts) < 2 {
		panic("sim: scenario requires >=2 accounts")
	}
	fromIdx := g.rnd.Intn(len(g.accounts))
	toIdx := g.rnd.Intn(len(g.accounts) - 1)
	if toIdx >= fromIdx {
		toIdx++
	}
	from, to := g.accounts[fromIdx], g.accounts[toIdx]
	span := int64(g.maxAmount - g.minAmount + 1)
	return Transfer{
		Owner:  from.Owner,
		Token:  from.Token,
		From:   from.Endpoint,
		To:     to.Endpoint,
		Amount: g.minAmount + ledger.Money(g.rnd.Int63n(span)),
	}
}

func (g *Generator) Accounts() []Account {
	return append([]Account(nil), g.accounts...)
}
