package sync2

import (
	"github.com/krihaa/minikernel/internal/critical"
	"github.com/krihaa/minikernel/internal/ring"
	"github.com/krihaa/minikernel/internal/sched"
)

// Condition is a mesa-semantics condition variable: Signal/Broadcast
// only wake a waiter, they do not guarantee its predicate holds by the
// time it runs again, so every caller of Wait must re-check its
// predicate in a loop.
type Condition struct {
	waiters *ring.Queue
}

// NewCondition returns an empty condition variable.
func NewCondition() *Condition {
	return &Condition{waiters: sched.NewWaitQueue()}
}

// Wait releases m, blocks on the condition, and reacquires m before
// returning. The release, block and reacquire happen inside one
// enclosing critical section -- the only way block/unblock may legally
// straddle a lock release -- per spec section 5's critical-section rule.
func (c *Condition) Wait(m *Lock) {
	critical.Enter()
	m.ReleaseUnderCritical()
	sched.Block(c.waiters)
	m.AcquireUnderCritical()
	critical.Leave()
}

// Signal wakes at most one waiter.
func (c *Condition) Signal() {
	critical.Enter()
	sched.Unblock(c.waiters)
	critical.Leave()
}

// Broadcast wakes every waiter.
func (c *Condition) Broadcast() {
	critical.Enter()
	for {
		if _, ok := sched.Unblock(c.waiters); !ok {
			break
		}
	}
	critical.Leave()
}
