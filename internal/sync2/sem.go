package sync2

import (
	"github.com/krihaa/minikernel/internal/critical"
	"github.com/krihaa/minikernel/internal/ring"
	"github.com/krihaa/minikernel/internal/sched"
)

// Semaphore is a counting semaphore whose counter may go negative: a
// negative counter's magnitude is the number of tasks currently blocked
// in Down, mirroring zhoujunjun-apple-xinu-go's SEntry.SCount.
type Semaphore struct {
	counter int32
	waiters *ring.Queue
}

// NewSemaphore returns a semaphore with the given initial count.
func NewSemaphore(initial int32) *Semaphore {
	return &Semaphore{counter: initial, waiters: sched.NewWaitQueue()}
}

// Up increments the counter and, if the result is not positive (so a
// task is still waiting), unblocks one of them.
func (s *Semaphore) Up() {
	critical.Enter()
	s.counter++
	if s.counter <= 0 {
		sched.Unblock(s.waiters)
	}
	critical.Leave()
}

// Down decrements the counter and blocks the caller if the result is
// negative.
func (s *Semaphore) Down() {
	critical.Enter()
	s.counter--
	if s.counter < 0 {
		sched.Block(s.waiters)
	}
	critical.Leave()
}

// Count returns the current counter value, for tests and diagnostics.
func (s *Semaphore) Count() int32 {
	return s.counter
}
