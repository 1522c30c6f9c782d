package vm

import (
	"errors"

	"github.com/krihaa/minikernel/internal/kconfig"
)

// ErrNullDereference and ErrAccessViolation are the two task-fatal
// outcomes HandleFault can report; spec section 4.4 calls for the
// offending task to be killed, not the kernel halted, in both cases.
var (
	ErrNullDereference = errors.New("vm: dereference of a null pointer")
	ErrAccessViolation = errors.New("vm: access violation on a present page")
)

// errCodePresent mirrors the x86 page-fault error code's bit 0: when
// set, the fault was a protection violation on an already-present page
// rather than a missing page.
const errCodePresent = 1

// HandleFault services a page fault for owner's address space. swapLoc
// and swapSectors are the owning process's image location on disk
// (kconfig.SectorSize-sized sectors); dir is the faulting task's page
// directory.
func (m *Manager) HandleFault(dir *PageDirectory, owner int32, swapLoc, swapSectors uint32, vaddr uintptr, errCode uint32) error {
	if vaddr == 0 {
		return ErrNullDereference
	}
	if errCode&errCodePresent != 0 {
		return ErrAccessViolation
	}

	entry := m.Walk(dir, vaddr)

	byteOff := vaddr - kconfig.ProcessEntry
	sectorOff := uint32(byteOff / kconfig.SectorSize)
	aligned := (sectorOff / kconfig.SectorsPerPage) * kconfig.SectorsPerPage
	if aligned >= swapSectors {
		return ErrAccessViolation
	}
	diskSector := swapLoc + aligned

	count := uint32(kconfig.SectorsPerPage)
	if remaining := swapSectors - aligned; remaining < count {
		count = remaining
	}

	frame, err := m.GetMemory(vaddr, owner, entry)
	if err != nil {
		return err
	}
	dst := m.Frame(frame)

	var sector [kconfig.SectorSize]byte
	for i := uint32(0); i < count; i++ {
		if err := m.dev.ReadSector(diskSector+i, sector[:]); err != nil {
			return err
		}
		copy(dst[i*kconfig.SectorSize:(i+1)*kconfig.SectorSize], sector[:])
	}

	entry.SetFrame(frame)
	entry.SetFlags(FlagPresent | FlagRW | FlagUS)
	return nil
}
