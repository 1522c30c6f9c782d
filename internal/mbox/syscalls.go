package mbox

import (
	"github.com/krihaa/minikernel/internal/diag"
	"github.com/krihaa/minikernel/internal/sched"
)

// OpenSyscall, CloseSyscall, SendSyscall, RecvSyscall and StatSyscall are
// the task-aware entry points a syscall dispatcher calls into, as opposed
// to the bare Open/Close/Send/Recv/Stat above which report errors for
// unit testing the bounds/blocking logic in isolation. Per spec section
// 6's error-propagation rule, VM and mailbox errors have no in-band
// return path and terminate the offending task instead -- the same
// diag.Kill(t, ...) pattern boot.HandlePageFault uses for a VM fault.

// OpenSyscall binds t to the mailbox identified by key, killing t on an
// out-of-range key per spec section 4.3's "bounds-check the key and
// terminate the caller on invalid key".
func OpenSyscall(t *sched.TCB, key int) {
	if err := Open(key); err != nil {
		diag.Kill(t, "mbox: open(%d): %v", key, err)
	}
}

// CloseSyscall releases t's reference to key.
func CloseSyscall(t *sched.TCB, key int) {
	if err := Close(key); err != nil {
		diag.Kill(t, "mbox: close(%d): %v", key, err)
	}
}

// SendSyscall enqueues msg on key's mailbox, killing t on an invalid key
// or an oversized message.
func SendSyscall(t *sched.TCB, key int, msg []byte) {
	if err := Send(key, msg); err != nil {
		diag.Kill(t, "mbox: send(%d): %v", key, err)
	}
}

// RecvSyscall returns the next message payload from key's mailbox,
// killing t on an invalid key.
func RecvSyscall(t *sched.TCB, key int) []byte {
	payload, err := Recv(key)
	if err != nil {
		diag.Kill(t, "mbox: recv(%d): %v", key, err)
		return nil
	}
	return payload
}

// StatSyscall reports key's pending message count and free space,
// killing t on an invalid key.
func StatSyscall(t *sched.TCB, key int) (messageCount, space int) {
	messageCount, space, err := Stat(key)
	if err != nil {
		diag.Kill(t, "mbox: stat(%d): %v", key, err)
		return 0, 0
	}
	return messageCount, space
}
