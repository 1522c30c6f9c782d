// Package boot wires the scheduler, memory manager and filesystem
// together into the sequence kernel/kmain's entry point runs once at
// startup, grounded on rivenbryan-go-dav-os's kernel.Main (disable
// interrupts, initialize each subsystem in dependency order, hand off
// to the idle loop) generalized past go-dav-os's own terminal/keyboard/
// shell stack, which this kernel does not have.
package boot

import (
	"github.com/krihaa/minikernel/internal/blockdev"
	"github.com/krihaa/minikernel/internal/diag"
	"github.com/krihaa/minikernel/internal/fs"
	"github.com/krihaa/minikernel/internal/kconfig"
	"github.com/krihaa/minikernel/internal/sched"
	"github.com/krihaa/minikernel/internal/vm"
)

// pinnedFrames bounds the pool of frames reserved for page directories,
// page tables and stacks -- never reclaimed by the eviction policy.
const pinnedFrames = 64

// evictionSeed seeds the default RandomEvictor. It stands in for the
// boot cycle-counter the real hardware would read; a fixed constant
// keeps cold-boot eviction order reproducible across runs.
const evictionSeed = 0x9E3779B9

// Config describes the one boot program this kernel starts once every
// subsystem is up, mirroring the teacher's RunProgram("hello") call.
type Config struct {
	Disk             blockdev.Device
	DataBlocks       int
	ImageSwapLoc     uint32
	ImageSwapSectors uint32
}

// Kernel bundles every subsystem boot wires together, so the page-fault
// path and future syscalls have somewhere to reach the memory manager
// and mounted filesystem from.
type Kernel struct {
	Mem *vm.Manager
	FS  *fs.FS

	kernelDir *vm.PageDirectory
}

// Main brings up the scheduler, memory manager and filesystem, starts
// the configured boot program as the first process, and returns the
// Kernel handle the page-fault path and syscall dispatcher need. The
// caller becomes the idle task: once Main returns, it should loop
// calling sched.Yield() forever, the same role the bootstrap thread of
// execution plays in sched.Init's own design.
func Main(cfg Config) *Kernel {
	sched.Init()

	mgr := vm.NewManager(cfg.Disk, vm.NewRandomEvictor(evictionSeed), pinnedFrames)
	vm.SetWriteBack(swapOut(cfg.Disk))

	_, kernelDir := mgr.NewKernelAddressSpace(0, 0)

	fsys, err := fs.Mount(cfg.Disk, cfg.DataBlocks)
	if err != nil {
		diag.Fatal("boot: filesystem mount failed: %v", err)
	}

	k := &Kernel{Mem: mgr, FS: fsys, kernelDir: kernelDir}

	dirFrame, _ := mgr.NewProcessAddressSpace(kernelDir, uintptr(cfg.ImageSwapSectors)*kconfig.SectorSize)
	task, ok := sched.NewProcess(kconfig.ProcessEntry, cfg.ImageSwapLoc, cfg.ImageSwapSectors, dirFrame.Address())
	if !ok {
		diag.Fatal("boot: no free task slot for the boot program")
	}
	task.Cwd = fsys.RootInode()

	return k
}

// swapOut returns the vm.Manager write-back hook: it persists an
// evicted frame's content back to its owner's page of the swap image,
// the coupling spec section 1 draws between the memory manager and the
// block device.
func swapOut(dev blockdev.Device) func(d *vm.FrameDescriptor, m *vm.Manager) {
	return func(d *vm.FrameDescriptor, m *vm.Manager) {
		t := sched.TCBByIndex(d.Owner)
		if t == nil || t.SwapSectors == 0 {
			return
		}
		byteOff := d.VAddr - kconfig.ProcessEntry
		sectorOff := uint32(byteOff/kconfig.SectorSize/kconfig.SectorsPerPage) * kconfig.SectorsPerPage
		if sectorOff >= t.SwapSectors {
			return
		}
		disk := t.SwapLoc + sectorOff
		content := m.Frame(d.Frame)
		for i := 0; i < kconfig.SectorsPerPage; i++ {
			if sectorOff+uint32(i) >= t.SwapSectors {
				break
			}
			dev.WriteSector(disk+uint32(i), content[i*kconfig.SectorSize:(i+1)*kconfig.SectorSize])
		}
	}
}

// HandlePageFault services a #PF trap for the currently running task.
// The real ISR entry (the gccgo-linked assembly trampoline that saves
// registers on fault, the same contract cpu_switch_gccgo.go's dispatch
// trampoline follows) calls this after recording the faulting address
// and processor error code on the TCB, per spec section 3's
// fault-address/error-code TCB slots.
func (k *Kernel) HandlePageFault() {
	t := sched.CurrentTCB()
	dir := k.Mem.PageDirectoryAt(vm.FrameOf(t.PageDirPhys))
	if dir == nil {
		dir = k.kernelDir
	}

	err := k.Mem.HandleFault(dir, t.ID, t.SwapLoc, t.SwapSectors, t.FaultAddr, uint32(t.ErrCode))
	t.PageFaults++
	if err != nil {
		diag.Kill(t, "page fault at %#x: %v", t.FaultAddr, err)
	}
}
