// Package sched implements the task control block table, the ready
// ring / wait queue bookkeeping, and the round-robin scheduler described
// in spec section 4.1. It generalizes the teacher's flat round-robin task
// array (github.com/dmarro89/go-dav-os kernel/scheduler/scheduler.go) to
// the full TCB attribute set a scheduler with genuine blocking,
// processes-with-private-address-spaces and a filesystem needs.
package sched

import "github.com/krihaa/minikernel/internal/kconfig"

// Kind distinguishes a process (private page directory, swappable image)
// from a kernel thread (aliases the kernel's page directory).
type Kind uint8

const (
	KindProcess Kind = iota
	KindThread
)

// State is a TCB's scheduling state.
type State uint8

const (
	StateFirstProcess State = iota
	StateFirstThread
	StateReady
	StateBlocked
	StateExited
	StateFree
)

// OpenFile is one entry of a task's open-file table.
type OpenFile struct {
	Mode  int
	Inode int32 // -1 when the slot is unused
}

// MaxOpenFiles bounds OpenFiles below, mirroring kconfig.MaxOpenFiles.
const MaxOpenFiles = kconfig.MaxOpenFiles

// StackSize is the size in bytes of a task's backing stack buffer,
// matching the teacher's own scheduler.StackSize.
const StackSize = 4096

// TCB is the fixed-size task control block. All TCBs live in the static
// table array; next/prev fields are not stored here because ring/wait
// queue linkage is kept in the scheduler's shared index arrays (see
// sched.go) rather than inside the struct, so that a TCB's only trace of
// "which list it is on" is the shared storage itself.
type TCB struct {
	ID    int32
	Kind  Kind
	State State

	// TypeTag is opaque accounting data read by the context-switch
	// trampoline only; the scheduler never interprets it.
	TypeTag int32

	KernelSP uintptr
	UserSP   uintptr
	Entry    uintptr

	// Stack backs whichever of KernelSP/UserSP is this TCB's active
	// slot (see activeStack in sched.go): a process's kernel stack, or
	// a thread's own stack. buildInitialFrame (stack.go) writes a
	// task's first-dispatch frame into it before the TCB ever appears
	// on the ready ring.
	Stack [StackSize]byte

	// SwapLoc is the disk sector the process image was loaded from;
	// SwapSectors is its length in sectors. Threads leave both zero.
	SwapLoc     uint32
	SwapSectors uint32

	// PageDirPhys is the physical address of this task's page
	// directory. Threads alias the kernel's.
	PageDirPhys uintptr

	OpenFiles [MaxOpenFiles]OpenFile
	Cwd       int32 // inode number of the current working directory

	FaultAddr  uintptr
	ErrCode    int32
	PageFaults uint64
}

func (t *TCB) reset() {
	*t = TCB{ID: t.ID, State: StateFree, Cwd: -1}
	for i := range t.OpenFiles {
		t.OpenFiles[i].Inode = -1
	}
}
