package vm

import (
	"testing"

	"github.com/krihaa/minikernel/internal/blockdev"
	"github.com/krihaa/minikernel/internal/kconfig"
)

// firstCandidate always evicts the first candidate offered, making
// eviction tests deterministic without depending on RandomEvictor's
// exact sequence.
type firstCandidate struct{}

func (firstCandidate) PickVictim(candidates []int) int { return candidates[0] }

func TestGetMemoryFillsPoolBeforeEvicting(t *testing.T) {
	m := NewManager(blockdev.NewMemDisk(1), firstCandidate{}, 4)
	seen := map[FrameID]bool{}
	for i := 0; i < kconfig.PageablePages; i++ {
		var pte PTE
		f, err := m.GetMemory(uintptr(i*kconfig.PageSize), 0, &pte)
		if err != nil {
			t.Fatalf("GetMemory: %v", err)
		}
		if seen[f] {
			t.Fatalf("frame %d handed out twice before pool exhausted", f)
		}
		seen[f] = true
	}
	if m.allocated != kconfig.PageablePages {
		t.Fatalf("expected pool fully allocated, got %d", m.allocated)
	}
}

func TestGetMemoryEvictsWhenPoolExhausted(t *testing.T) {
	m := NewManager(blockdev.NewMemDisk(1), firstCandidate{}, 4)
	ptes := make([]PTE, kconfig.PageablePages)
	for i := 0; i < kconfig.PageablePages; i++ {
		f, err := m.GetMemory(uintptr(i*kconfig.PageSize), 0, &ptes[i])
		if err != nil {
			t.Fatalf("GetMemory: %v", err)
		}
		ptes[i].SetFrame(f)
		ptes[i].SetFlags(FlagPresent)
	}

	var writtenBack bool
	SetWriteBack(func(d *FrameDescriptor, m *Manager) { writtenBack = true })
	defer SetWriteBack(nil)
	ptes[0].SetFlags(FlagDirty)

	var newPTE PTE
	evicted, err := m.GetMemory(0xDEAD000, 7, &newPTE)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}

	if evicted != m.desc[0].Frame {
		t.Fatalf("expected eviction to reuse candidate 0's frame")
	}
	if !writtenBack {
		t.Fatalf("expected dirty victim to be written back before reuse")
	}
	if ptes[0].HasFlags(FlagPresent) {
		t.Fatalf("expected evicted entry's Present flag cleared")
	}
	if m.desc[0].Owner != 7 || m.desc[0].VAddr != 0xDEAD000 {
		t.Fatalf("expected descriptor reassigned to new owner")
	}
}

func TestGetMemoryReportsErrorWhenEveryFrameIsPinned(t *testing.T) {
	m := NewManager(blockdev.NewMemDisk(1), firstCandidate{}, 4)
	ptes := make([]PTE, kconfig.PageablePages)
	for i := 0; i < kconfig.PageablePages; i++ {
		f, err := m.GetMemory(uintptr(i*kconfig.PageSize), 0, &ptes[i])
		if err != nil {
			t.Fatalf("GetMemory: %v", err)
		}
		m.Pin(f, true)
	}

	var newPTE PTE
	if _, err := m.GetMemory(0xBEEF000, 0, &newPTE); err != ErrNoFrameAvailable {
		t.Fatalf("expected ErrNoFrameAvailable, got %v", err)
	}
}

func TestIdentityMapSetsFrameToSelf(t *testing.T) {
	m := NewManager(blockdev.NewMemDisk(1), firstCandidate{}, 16)
	_, dir := m.newPageDirectory()
	m.IdentityMap(dir, 0x100000, 0x100000+2*kconfig.PageSize, FlagRW)

	e := m.Walk(dir, 0x100000+kconfig.PageSize)
	if !e.HasFlags(FlagPresent | FlagRW) {
		t.Fatalf("expected identity-mapped entry present and writable")
	}
	if e.Frame().Address() != 0x100000+kconfig.PageSize {
		t.Fatalf("expected identity mapping, got frame address %#x", e.Frame().Address())
	}
}

func TestWalkCreatesPageTableOnDemand(t *testing.T) {
	m := NewManager(blockdev.NewMemDisk(1), firstCandidate{}, 16)
	_, dir := m.newPageDirectory()
	pdIndex, _, _ := Split(kconfig.ProcessEntry)
	if dir.Entries[pdIndex].HasFlags(FlagPresent) {
		t.Fatalf("expected no page table before first Walk")
	}
	m.Walk(dir, kconfig.ProcessEntry)
	if !dir.Entries[pdIndex].HasFlags(FlagPresent) {
		t.Fatalf("expected Walk to create and wire in a page table")
	}
}

func TestHandleFaultSwapsInFromDisk(t *testing.T) {
	dev := blockdev.NewMemDisk(32)
	const swapLoc = 4
	var sector [kconfig.SectorSize]byte
	for i := range sector {
		sector[i] = byte(i)
	}
	dev.WriteSector(swapLoc, sector[:])

	m := NewManager(dev, firstCandidate{}, 16)
	_, kernelDir := m.NewKernelAddressSpace(0, 0)
	_, dir := m.NewProcessAddressSpace(kernelDir, kconfig.PageSize)

	err := m.HandleFault(dir, 0, swapLoc, kconfig.SectorsPerPage, kconfig.ProcessEntry, 0)
	if err != nil {
		t.Fatalf("HandleFault: %v", err)
	}

	e := m.Walk(dir, kconfig.ProcessEntry)
	if !e.HasFlags(FlagPresent | FlagRW | FlagUS) {
		t.Fatalf("expected faulted-in page present, writable and user-accessible")
	}
	content := m.Frame(e.Frame())
	if content[0] != 0 || content[1] != 1 || content[2] != 2 {
		t.Fatalf("expected swapped-in content from disk, got %v", content[:3])
	}
}

func TestHandleFaultNullDereference(t *testing.T) {
	m := NewManager(blockdev.NewMemDisk(1), firstCandidate{}, 16)
	_, dir := m.newPageDirectory()
	if err := m.HandleFault(dir, 0, 0, 0, 0, 0); err != ErrNullDereference {
		t.Fatalf("expected ErrNullDereference, got %v", err)
	}
}

func TestHandleFaultAccessViolationOnPresentPage(t *testing.T) {
	m := NewManager(blockdev.NewMemDisk(1), firstCandidate{}, 16)
	_, dir := m.newPageDirectory()
	err := m.HandleFault(dir, 0, 0, kconfig.SectorsPerPage, kconfig.ProcessEntry, errCodePresent)
	if err != ErrAccessViolation {
		t.Fatalf("expected ErrAccessViolation, got %v", err)
	}
}
