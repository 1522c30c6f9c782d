package vm

import "github.com/krihaa/minikernel/internal/kconfig"

// getOrCreatePageTable returns the page table for pdIndex within dir,
// allocating and wiring in a fresh pinned page table frame if none is
// mapped there yet.
func (m *Manager) getOrCreatePageTable(dir *PageDirectory, pdIndex int) *PageTable {
	e := &dir.Entries[pdIndex]
	if e.HasFlags(FlagPresent) {
		return m.pageTables[e.Frame()]
	}
	f, pt := m.newPageTable()
	e.SetFrame(f)
	e.SetFlags(FlagPresent | FlagRW | FlagUS)
	return pt
}

// Walk locates the leaf page table entry for vaddr within dir, creating
// the intermediate page table if it does not exist yet. It never
// creates the leaf entry itself -- callers decide whether a missing leaf
// means "page not yet faulted in" or an error.
func (m *Manager) Walk(dir *PageDirectory, vaddr uintptr) *PTE {
	pdIndex, ptIndex, _ := Split(vaddr)
	pt := m.getOrCreatePageTable(dir, pdIndex)
	return &pt.Entries[ptIndex]
}

// IdentityMap maps every page in [start, end) to itself in dir, with the
// given flags in addition to Present. It is used at boot to map kernel
// text/data and the fixed-address screen buffer, per spec section 4.4.
func (m *Manager) IdentityMap(dir *PageDirectory, start, end uintptr, flags PTEFlag) {
	start &^= kconfig.PageSize - 1
	for addr := start; addr < end; addr += kconfig.PageSize {
		e := m.Walk(dir, addr)
		e.SetFrame(FrameID(addr >> frameShift))
		e.SetFlags(FlagPresent | flags)
	}
}

// NewKernelAddressSpace builds the page directory shared (by entry
// copy, not by reference) into every process address space: kernel
// text/data identity-mapped supervisor-only, and the screen buffer
// identity-mapped user-accessible so a task's own print syscall can
// write to it directly.
func (m *Manager) NewKernelAddressSpace(kernelStart, kernelEnd uintptr) (FrameID, *PageDirectory) {
	f, dir := m.newPageDirectory()
	m.IdentityMap(dir, kernelStart, kernelEnd, FlagRW)
	m.IdentityMap(dir, kconfig.ScreenAddr, kconfig.ScreenAddr+kconfig.PageSize, FlagRW|FlagUS)
	return f, dir
}

// NewProcessAddressSpace clones the kernel mappings into a fresh
// directory, attaches two pinned, pre-populated user stack pages below
// kconfig.ProcessStack, and pre-creates (but leaves not-present) the
// page table entries covering the process's code/data image so the
// first access to each faults in get_memory on demand.
func (m *Manager) NewProcessAddressSpace(kernelDir *PageDirectory, imageBytes uintptr) (FrameID, *PageDirectory) {
	f, dir := m.newPageDirectory()
	dir.Entries = kernelDir.Entries

	const stackPages = 2
	stackBase := uintptr(kconfig.ProcessStack) - stackPages*kconfig.PageSize
	for i := 0; i < stackPages; i++ {
		addr := stackBase + uintptr(i)*kconfig.PageSize
		e := m.Walk(dir, addr)
		sf := m.allocPinnedFrame()
		e.SetFrame(sf)
		e.SetFlags(FlagPresent | FlagRW | FlagUS)
	}

	for off := uintptr(0); off < imageBytes; off += kconfig.PageSize {
		e := m.Walk(dir, kconfig.ProcessEntry+off)
		e.SetFlags(FlagRW | FlagUS)
	}

	return f, dir
}
