// Package sync2 implements the monitor-style synchronization toolkit of
// spec section 4.2 -- lock, condition variable, semaphore and barrier --
// directly on top of the scheduler's block/unblock hooks, following the
// semaphore/ready-list shape of the Xinu-derived teaching kernel in the
// reference corpus (zhoujunjun-apple-xinu-go semaphore.go/resched.go):
// every operation disables interrupts for the duration of its queue
// manipulation and never loops waiting -- it either succeeds immediately
// or blocks.
package sync2

import (
	"github.com/krihaa/minikernel/internal/critical"
	"github.com/krihaa/minikernel/internal/ring"
	"github.com/krihaa/minikernel/internal/sched"
)

// Lock is a mutual-exclusion lock with mesa-semantics hand-off: Release
// passes LOCKED status directly to the next waiter instead of reopening
// the lock to everyone, so there is no thundering herd.
type Lock struct {
	locked  bool
	waiters *ring.Queue
}

// NewLock returns an unlocked Lock.
func NewLock() *Lock {
	return &Lock{waiters: sched.NewWaitQueue()}
}

// Acquire blocks until the lock is held by the caller.
func (l *Lock) Acquire() {
	critical.Enter()
	l.AcquireUnderCritical()
	critical.Leave()
}

// AcquireUnderCritical performs the same work as Acquire but assumes the
// caller has already entered a critical section and will leave it; it
// exists so Condition.Wait can compose "release the monitor lock, block
// on the condition, reacquire the monitor lock" as a single critical
// section, per spec section 9's "lock_acquire_under_critical" note.
func (l *Lock) AcquireUnderCritical() {
	if !l.locked {
		l.locked = true
		return
	}
	sched.Block(l.waiters)
}

// Release gives up the lock. If a task is waiting, it is handed the lock
// directly and becomes ready; the lock stays LOCKED throughout.
func (l *Lock) Release() {
	critical.Enter()
	l.ReleaseUnderCritical()
	critical.Leave()
}

// ReleaseUnderCritical is Release's critical-section-composable form.
func (l *Lock) ReleaseUnderCritical() {
	if _, ok := sched.Unblock(l.waiters); !ok {
		l.locked = false
	}
}

// Locked reports whether the lock is currently held, for tests and
// diagnostics.
func (l *Lock) Locked() bool {
	return l.locked
}
