package sim

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/obs"
)

// Credentials identify one simulated account holder.
type Credentials struct {
	Login    string
	Password string
}

// Setup logs every holder in and opens accountsPerBank accounts for each of
// them in every bank.
func Setup(ctx context.Context, c *Client, holders []Credentials, accountsPerBank int) ([]Account, error) {
	biks, err := c.Banks(ctx)
	if err != nil {
		return nil, err
	}
	if accountsPerBank <= 0 {
		accountsPerBank = 1
	}
	var out []Account
	for _, h := range holders {
		token, err := c.Login(ctx, h.Login, h.Password)
		if err != nil {
			return nil, err
		}
		for _, bik := range biks {
			for i := 0; i < accountsPerBank; i++ {
				id, err := c.OpenAccount(ctx, token, bik)
				if err != nil {
					return nil, err
				}
				out = append(out, Account{
					Owner:    h.Login,
					Token:    token,
					Endpoint: ledger.Endpoint{BankID: bik, AccountID: id},
				})
			}
		}
	}
	return out, nil
}

type Options struct {
	Workers   int
	Seed      int64
	MinAmount ledger.Money
	MaxAmount ledger.Money
	// Pause is the base delay between a worker's requests; a random jitter
	// of up to the same length is added.
	Pause time.Duration
}

// Run drives transfers from opts.Workers goroutines until ctx is done.
func Run(ctx context.Context, c *Client, accounts []Account, opts Options, counter *Counter) {
	log := obs.Component("sim")
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			seed := opts.Seed + int64(id*9973)
			gen := NewGenerator(seed, accounts, opts.MinAmount, opts.MaxAmount)
			rnd := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				t := gen.NextTransfer()
				_, err := c.Transfer(ctx, t.Token, t, uuid.NewString())
				switch code := Code(err); {
				case err == nil:
					counter.Success(t)
				case ctx.Err() != nil:
					return
				case code == http.StatusConflict:
					counter.Conflict()
				case code == http.StatusTooManyRequests:
					counter.RateLimited()
					sleep(ctx, 250*time.Millisecond)
				default:
					counter.Failure()
					log.WithError(err).WithFields(logrus.Fields{"worker": id, "from": t.From.String()}).Warn("transfer failed")
					sleep(ctx, 200*time.Millisecond)
				}
				if opts.Pause > 0 {
					sleep(ctx, opts.Pause+time.Duration(rnd.Int63n(int64(opts.Pause))))
				}
			}
		}(i)
	}
	wg.Wait()
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
