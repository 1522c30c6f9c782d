// Package vm implements the page directory / page table walker, the
// get_memory frame allocator with random eviction, the page fault
// handler and the identity-map API of spec section 4.4. The page table
// entry flag-bit shape is grounded on gopher-os's
// kernel/mem/vmm/{pte,pdt}.go; the fault handler's control flow follows
// mit-pdos-biscuit's pmap.go swap-in/swap-out path.
package vm

import "github.com/krihaa/minikernel/internal/kconfig"

// PageSize is the architectural x86 page size (also the unit get_memory
// hands out).
const PageSize = kconfig.PageSize

// frameShift is log2(PageSize): the number of low bits a page table
// entry reserves for flags before the frame number begins.
const frameShift = 12

// FrameID identifies a physical page frame by number (not byte address).
type FrameID uint32

// Address returns the frame's physical byte address.
func (f FrameID) Address() uintptr {
	return uintptr(f) << frameShift
}

// FrameOf returns the frame number containing a physical address.
func FrameOf(addr uintptr) FrameID {
	return FrameID(addr >> frameShift)
}

// PTEFlag is a page-table-entry flag bit.
type PTEFlag uintptr

const (
	FlagPresent PTEFlag = 1 << 0
	FlagRW      PTEFlag = 1 << 1
	FlagUS      PTEFlag = 1 << 2
	FlagDirty   PTEFlag = 1 << 6
)

// PTE is a page table or page directory entry: a physical frame number
// packed with flag bits, exactly as the real x86 architecture lays them
// out.
type PTE uintptr

// HasFlags reports whether every bit in flags is set.
func (p PTE) HasFlags(flags PTEFlag) bool {
	return uintptr(p)&uintptr(flags) == uintptr(flags)
}

// SetFlags sets the given flag bits.
func (p *PTE) SetFlags(flags PTEFlag) {
	*p = PTE(uintptr(*p) | uintptr(flags))
}

// ClearFlags clears the given flag bits.
func (p *PTE) ClearFlags(flags PTEFlag) {
	*p = PTE(uintptr(*p) &^ uintptr(flags))
}

// Frame returns the physical frame this entry points to.
func (p PTE) Frame() FrameID {
	return FrameID(uintptr(p) >> frameShift)
}

// SetFrame updates the entry's frame number, leaving its flags intact.
func (p *PTE) SetFrame(f FrameID) {
	*p = PTE((uintptr(*p) & (1<<frameShift - 1)) | f.Address())
}

// PageTable is one level of 1024 leaf entries.
type PageTable struct {
	Entries [1024]PTE
}

// PageDirectory is the top-level table of 1024 entries, each pointing at
// a PageTable (or not-present).
type PageDirectory struct {
	Entries [1024]PTE
}

// Split breaks a virtual address into its page-directory index,
// page-table index and in-page offset.
func Split(vaddr uintptr) (pdIndex, ptIndex, offset int) {
	pdIndex = int((vaddr >> 22) & 0x3FF)
	ptIndex = int((vaddr >> 12) & 0x3FF)
	offset = int(vaddr & 0xFFF)
	return
}
