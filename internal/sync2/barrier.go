package sync2

import (
	"github.com/krihaa/minikernel/internal/critical"
	"github.com/krihaa/minikernel/internal/ring"
	"github.com/krihaa/minikernel/internal/sched"
)

// Barrier is a reusable one-shot-per-cycle rendezvous: it releases every
// waiter once exactly Reach arrivals have accumulated, then resets for
// the next cycle.
type Barrier struct {
	counter int32
	reach   int32
	waiters *ring.Queue
}

// NewBarrier returns a barrier that releases after reach arrivals.
func NewBarrier(reach int32) *Barrier {
	return &Barrier{reach: reach, waiters: sched.NewWaitQueue()}
}

// Wait blocks until Reach tasks have called Wait, then releases all of
// them and resets the barrier for its next cycle.
func (b *Barrier) Wait() {
	critical.Enter()
	b.counter++
	if b.counter == b.reach {
		for {
			if _, ok := sched.Unblock(b.waiters); !ok {
				break
			}
		}
		b.counter = 0
		critical.Leave()
		return
	}
	sched.Block(b.waiters)
	critical.Leave()
}

// Counter returns the current arrival count, for tests and diagnostics.
func (b *Barrier) Counter() int32 {
	return b.counter
}
