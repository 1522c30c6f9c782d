package sched

import (
	"github.com/krihaa/minikernel/internal/critical"
	"github.com/krihaa/minikernel/internal/kconfig"
	"github.com/krihaa/minikernel/internal/ring"
)

const MaxTasks = kconfig.MaxTasks

var (
	table [MaxTasks]TCB

	// nextLink/prevLink back every wait queue and the ready ring. A TCB
	// index appears in exactly one of them at a time because Ring and
	// Queue both mutate the same nextLink slot for a given index.
	nextLink [MaxTasks]int32
	prevLink [MaxTasks]int32

	readyRing *ring.Ring
	freeList  []int32

	current int32 = ring.None
	nextID  int32 = 1
)

// NewWaitQueue returns an empty FIFO wait queue sharing this scheduler's
// link storage. Every synchronization primitive owns one of these.
func NewWaitQueue() *ring.Queue {
	return ring.NewQueue(nextLink[:])
}

// Init resets all scheduler state and creates the bootstrap task (the
// thread of execution that was already running when the kernel reached
// this point) as TCB 0, current and the sole ready-ring member.
func Init() {
	for i := range table {
		table[i] = TCB{ID: int32(i), State: StateFree, Cwd: -1}
		for j := range table[i].OpenFiles {
			table[i].OpenFiles[j].Inode = -1
		}
		nextLink[i] = ring.None
		prevLink[i] = ring.None
	}
	readyRing = ring.NewRing(nextLink[:], prevLink[:])
	freeList = nil
	for i := MaxTasks - 1; i >= 1; i-- {
		freeList = append(freeList, int32(i))
	}
	nextID = 1

	boot := &table[0]
	boot.ID = 0
	boot.Kind = KindThread
	boot.State = StateReady
	boot.Cwd = -1
	readyRing.Append(0)
	current = 0
}

func allocSlot() (int32, bool) {
	n := len(freeList)
	if n == 0 {
		return ring.None, false
	}
	idx := freeList[n-1]
	freeList = freeList[:n-1]
	return idx, true
}

// NewProcess allocates a TCB for a user process: entry is the virtual
// address of its first instruction, swapLoc/swapSectors identify the
// disk image it will be paged in from, pageDirPhys is the physical
// address of its freshly-cloned page directory.
func NewProcess(entry uintptr, swapLoc, swapSectors uint32, pageDirPhys uintptr) (*TCB, bool) {
	idx, ok := allocSlot()
	if !ok {
		return nil, false
	}
	t := &table[idx]
	t.reset()
	t.ID = nextID
	nextID++
	t.Kind = KindProcess
	t.State = StateFirstProcess
	t.Entry = entry
	t.SwapLoc = swapLoc
	t.SwapSectors = swapSectors
	t.PageDirPhys = pageDirPhys
	t.KernelSP = buildInitialFrame(&t.Stack, entry)
	readyRing.Append(idx)
	return t, true
}

// NewThread allocates a TCB for a kernel thread: its page directory
// aliases the kernel's, given by kernelPageDirPhys.
func NewThread(entry uintptr, kernelPageDirPhys uintptr) (*TCB, bool) {
	idx, ok := allocSlot()
	if !ok {
		return nil, false
	}
	t := &table[idx]
	t.reset()
	t.ID = nextID
	nextID++
	t.Kind = KindThread
	t.State = StateFirstThread
	t.Entry = entry
	t.PageDirPhys = kernelPageDirPhys
	t.UserSP = buildInitialFrame(&t.Stack, entry)
	readyRing.Append(idx)
	return t, true
}

// CurrentTCB returns the task control block of the running task.
func CurrentTCB() *TCB {
	if current == ring.None {
		return nil
	}
	return &table[current]
}

// GetPid returns the running task's identifier.
func GetPid() int32 {
	if current == ring.None {
		return -1
	}
	return table[current].ID
}

// TCBByIndex gives filesystem/VM code (which hold TCB indices, not
// pointers) access to a task's control block.
func TCBByIndex(idx int32) *TCB {
	return &table[idx]
}

// CurrentIndex returns the slot index of the running task.
func CurrentIndex() int32 {
	return current
}

// scheduleNext implements the round-robin policy of spec section 4.1
// without touching the trampoline or halting, so it is unit-testable in
// isolation: if the current task is no longer ready, splice it out of
// the ring first; then advance to current's successor. halt is true iff
// there is no task left to run.
func scheduleNext() (next int32, halt bool) {
	cur := current
	if table[cur].State != StateReady {
		succ := readyRing.Advance(cur)
		readyRing.Remove(cur)
		if readyRing.Empty() {
			return ring.None, true
		}
		return succ, false
	}

	return readyRing.Advance(cur), false
}

// activeStack returns the slot the trampoline saves/restores for t: the
// kernel stack for processes (which trap into the kernel to reach a
// scheduling point), the thread's own stack -- stored in UserSP since
// threads have no separate kernel entry trampoline of their own -- for
// threads. Dispatching a first-time task consumes exactly this slot's
// initial value, per spec section 4.1's "kernel stack for processes,
// user stack for threads" first-dispatch rule.
func activeStack(t *TCB) *uintptr {
	if t.Kind == KindProcess {
		return &t.KernelSP
	}
	return &t.UserSP
}

// dispatch performs the context switch from cur to next, updating
// current and reclaiming cur's slot if it exited. next's StateFirstProcess/
// StateFirstThread case needs no branch of its own here: buildInitialFrame
// already shaped newSlot's stack to look exactly like a task cpuSwitch had
// suspended mid-switch (see stack.go), so the same restore sequence that
// resumes a previously-running task also performs next's first-ever jump
// to Entry, satisfying spec section 4.1's two dispatch cases with one code
// path instead of two.
func dispatch(cur, next int32) {
	wasExited := table[cur].State == StateExited
	oldSlot := activeStack(&table[cur])

	table[next].State = StateReady
	newSlot := activeStack(&table[next])

	current = next
	cpuSwitch(oldSlot, *newSlot)

	if wasExited {
		freeList = append(freeList, cur)
		table[cur].State = StateFree
	}
}

// Yield voluntarily transfers control to the scheduler. The calling task
// stays ready; it simply cedes its turn.
func Yield() {
	critical.Enter()
	next, halt := scheduleNext()
	if halt {
		critical.Leave()
		return
	}
	cur := current
	dispatch(cur, next)
	critical.Leave()
}

// Block marks the running task blocked, appends it to q, and enters the
// scheduler. The caller must already be inside a critical section (see
// package critical) and remains responsible for leaving it once Block
// returns -- this is what lets Condition.Wait compose "release lock,
// block, reacquire lock" as a single critical section.
func Block(q *ring.Queue) {
	cur := current
	table[cur].State = StateBlocked

	// scheduleNext observes the state change above and splices cur out
	// of the ready ring itself; Block must not also remove it, or the
	// second removal would operate on an already-cleared link. The ring
	// and q share cur's next slot, so cur joins q only once it has left
	// the ring.
	next, halt := scheduleNext()
	q.Enqueue(cur)
	if halt {
		return
	}
	dispatch(cur, next)
}

// Unblock removes the head of q, marks it ready, and splices it into the
// ready ring immediately before the running task so it runs at the next
// scheduling point. Must be called inside a critical section. Returns
// false if q was empty.
func Unblock(q *ring.Queue) (int32, bool) {
	idx := q.Dequeue()
	if idx == ring.None {
		return ring.None, false
	}
	table[idx].State = StateReady
	if readyRing.Empty() {
		readyRing.Append(idx)
	} else {
		readyRing.InsertBefore(current, idx)
	}
	return idx, true
}

// Exit marks the running task exited and enters the scheduler, which
// will unlink it and reclaim its slot. On real hardware this never
// returns: the trampoline has already loaded a different task's stack
// pointer. Under the non-gccgo stub used by tests, scheduleNext/dispatch
// are pure bookkeeping, so callers in tests should exercise scheduleNext
// directly rather than calling Exit on the last remaining task.
func Exit() {
	critical.Enter()
	cur := current
	table[cur].State = StateExited
	next, halt := scheduleNext()
	if halt {
		// No task left to run: halt. Leave the critical section
		// entered so a caller attempting further scheduling calls
		// observes the halted state rather than silently resuming.
		return
	}
	dispatch(cur, next)
	critical.Leave()
}

// Exit on a *TCB terminates the current task, satisfying diag.Killer so
// diag.Kill can take a *TCB directly. It assumes t is the running task,
// true for every diag.Kill call site in this module.
func (t *TCB) Exit() {
	Exit()
}
