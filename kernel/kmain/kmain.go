// Package kmain is the kernel's single entry point, grounded on
// gopher-os's kernel/kmain/kmain.go: Kmain is the only Go symbol the
// rt0 assembly stub calls after setting up a minimal stack, and it is
// not expected to return.
package kmain

import (
	"github.com/krihaa/minikernel/internal/blockdev"
	"github.com/krihaa/minikernel/internal/boot"
	"github.com/krihaa/minikernel/internal/diag"
	"github.com/krihaa/minikernel/internal/kconfig"
	"github.com/krihaa/minikernel/internal/sched"
)

// bootImageSwapLoc and bootImageSwapSectors locate the first process's
// image within the disk image createimage produced; the image layout
// and the mkfs data-block count below must agree with it.
const (
	bootImageSwapLoc     = 64
	bootImageSwapSectors = 32
	dataBlocks           = kconfig.PageablePages * 2
)

// currentKernel is the single live Kernel handle; OnPageFault reads it
// to route a #PF trap into HandlePageFault, the same "package-level
// handle the trampoline reaches into" pattern cpu_switch_gccgo.go uses
// for the scheduler's own current-TCB pointer.
var currentKernel *boot.Kernel

// Start brings up the scheduler, memory manager and filesystem and
// starts the boot program, returning the Kernel handle OnPageFault will
// need. Split out of Kmain so tests can drive boot without also driving
// Kmain's infinite idle loop.
func Start(disk blockdev.Device) *boot.Kernel {
	k := boot.Main(boot.Config{
		Disk:             disk,
		DataBlocks:       dataBlocks,
		ImageSwapLoc:     bootImageSwapLoc,
		ImageSwapSectors: bootImageSwapSectors,
	})
	currentKernel = k
	return k
}

// Kmain disables interrupts implicitly by never unmasking the ones this
// cooperative kernel has no handler for, brings up every subsystem via
// Start, and falls through to the idle loop. It never returns.
func Kmain(disk blockdev.Device) {
	Start(disk)
	for {
		sched.Yield()
	}
}

// OnPageFault is called by the #PF trap trampoline with the faulting
// task's fault address and processor error code already recorded on its
// TCB, per spec section 3's fault-address/error-code TCB fields.
func OnPageFault() {
	if currentKernel == nil {
		diag.Fatal("kmain: page fault before boot completed")
		return
	}
	currentKernel.HandlePageFault()
}
