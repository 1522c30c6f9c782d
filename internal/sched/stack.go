package sched

import "unsafe"

// regSlots is the number of callee-saved general registers cpuSwitch's
// restore sequence pops before its final ret, matching the four
// registers (EDI, ESI, EBX, EBP) the teacher's own CpuSwitch trampoline
// saves and restores.
const regSlots = 4

// buildInitialFrame writes the fake return-address frame a first
// dispatch needs onto stack and returns the resulting stack pointer,
// exactly as the teacher's NewTaskEntry does for its own CpuSwitch:
// zeroed saved-register slots, then entry as the address the
// trampoline's final ret lands on, then a fallback return address for
// the (should-never-happen) case that entry returns normally instead of
// calling Exit. Because this frame has the same shape as a task that
// cpuSwitch had genuinely suspended mid-switch, the ordinary resume path
// in dispatch performs a first-time jump to entry with no separate
// "jump" primitive -- the ret that would normally restore a suspended
// caller instead lands on entry the first time around.
func buildInitialFrame(stack *[StackSize]byte, entry uintptr) uintptr {
	const word = unsafe.Sizeof(uintptr(0))

	sp := uintptr(unsafe.Pointer(&stack[0])) + StackSize
	sp &^= 15

	sp -= word
	*(*uintptr)(unsafe.Pointer(sp)) = funcPC(taskAutoExit)

	sp -= word
	*(*uintptr)(unsafe.Pointer(sp)) = entry

	sp -= regSlots * word
	for i := 0; i < regSlots; i++ {
		*(*uintptr)(unsafe.Pointer(sp + uintptr(i)*word)) = 0
	}

	return sp
}

// taskAutoExit is the fallback return address buildInitialFrame installs
// below entry: if a task's entry point ever returns instead of calling
// Exit itself, control lands here rather than on garbage.
func taskAutoExit() {
	Exit()
	for {
	}
}

// funcPC returns a Go function value's code entry address, exactly as
// the teacher's own funcPC does, by reaching through the func value to
// its underlying code pointer.
func funcPC(fn func()) uintptr {
	if fn == nil {
		return 0
	}
	fnVal := *(*uintptr)(unsafe.Pointer(&fn))
	if fnVal == 0 {
		return 0
	}
	return *(*uintptr)(unsafe.Pointer(fnVal))
}
