package sim

import (
	"fmt"
	"sync/atomic"

	"bankmesh.org/internal/ledger"
)

// Counter tallies outcomes across workers.
type Counter struct {
	successes   atomic.Int64
	conflicts   atomic.Int64
	rateLimited atomic.Int64
	failures    atomic.Int64
	volume      atomic.Int64
}

func (c *Counter) Success(t Transfer) {
	c.successes.Add(1)
	c.volume.Add(int64(t.Amount))
}

func (c *Counter) Conflict()    { c.conflicts.Add(1) }
func (c *Counter) RateLimited() { c.rateLimited.Add(1) }
func (c *Counter) Failure()     { c.failures.Add(1) }

func (c *Counter) Successes() int64     { return c.successes.Load() }
func (c *Counter) Volume() ledger.Money { return ledger.Money(c.volume.Load()) }

func (c *Counter) String() string {
	return fmt.Sprintf("%d ok / %d conflicts / %d rate limited / %d failed, volume %s",
		c.successes.Load(), c.conflicts.Load(), c.rateLimited.Load(), c.failures.Load(), c.Volume())
}
