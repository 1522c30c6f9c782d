//go:build gccgo

package sched

// cpuSwitch is the context-switch trampoline: it saves general
// registers, flags and the x87/MMX/SSE state onto the currently active
// stack, records the resulting stack pointer through oldSP, loads newSP
// and restores the successor's saved state before returning. Implemented
// in assembly and linked in by the kernel build, following
// github.com/dmarro89/go-dav-os's CpuSwitch/cpu_switch_gccgo.go split.
func CpuSwitch(oldSP *uintptr, newSP uintptr)

func cpuSwitch(oldSP *uintptr, newSP uintptr) {
	CpuSwitch(oldSP, newSP)
}
