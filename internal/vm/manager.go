package vm

import (
	"errors"

	"github.com/krihaa/minikernel/internal/blockdev"
	"github.com/krihaa/minikernel/internal/diag"
	"github.com/krihaa/minikernel/internal/kconfig"
	"github.com/krihaa/minikernel/internal/sync2"
)

// ErrNoFrameAvailable is GetMemory's task-fatal outcome when every frame
// in the pageable pool is pinned: spec section 4.4 (echoing spec.md:208)
// classifies this as "no unpinned frame to evict", to be reported to the
// requesting task, not a kernel-halting condition -- there is a specific
// owner task to kill, unlike allocPinnedFrame's boot-time exhaustion.
var ErrNoFrameAvailable = errors.New("vm: no unpinned frame available for eviction")

// FrameDescriptor tracks one frame in the pageable pool: who it belongs
// to, which page table entry currently maps it, and whether it has been
// pinned out of the eviction candidate set.
type FrameDescriptor struct {
	VAddr   uintptr
	Frame   FrameID
	Owner   int32
	Pinned  bool
	InUse   bool
	Entry   *PTE
}

// Manager owns every physical frame: the pinned bump-allocated pool used
// for page directories, page tables and stacks, and the pageable pool
// get_memory hands out to fault handling and reclaims by eviction.
//
// Physical memory is modeled as a flat array of page-sized byte frames
// for data-bearing pages (code, data, stack), and as two side tables of
// Go structs for page directories and page tables -- a deliberate
// simplification over gopher-os's raw-byte-plus-unsafe-cast approach,
// since this module never walks real CPU
// page tables and gains nothing from treating them as untyped bytes.
type Manager struct {
	lock *sync2.Lock

	ram          [][kconfig.PageSize]byte
	pinnedNext   FrameID
	pinnedLimit  FrameID
	pageableBase FrameID

	desc      [kconfig.PageablePages]FrameDescriptor
	allocated int

	evictor Evictor
	dev     blockdev.Device

	pageTables map[FrameID]*PageTable
	pageDirs   map[FrameID]*PageDirectory
}

// NewManager builds a memory manager with pinnedFrames pinned frames
// (page directories, page tables, kernel and stack pages) followed by
// kconfig.PageablePages pageable frames, backed by dev for swap-in.
func NewManager(dev blockdev.Device, evictor Evictor, pinnedFrames int) *Manager {
	total := pinnedFrames + kconfig.PageablePages
	m := &Manager{
		lock:         sync2.NewLock(),
		ram:          make([][kconfig.PageSize]byte, total),
		pinnedNext:   0,
		pinnedLimit:  FrameID(pinnedFrames),
		pageableBase: FrameID(pinnedFrames),
		evictor:      evictor,
		dev:          dev,
		pageTables:   make(map[FrameID]*PageTable),
		pageDirs:     make(map[FrameID]*PageDirectory),
	}
	return m
}

// allocPinnedFrame bump-allocates a frame from the pinned region. These
// frames are never reclaimed; running out of them is a boot-time
// resource exhaustion, not something any task caused, so it halts.
func (m *Manager) allocPinnedFrame() FrameID {
	if m.pinnedNext >= m.pinnedLimit {
		diag.Fatal("vm: pinned frame pool exhausted (limit %d)", m.pinnedLimit)
	}
	f := m.pinnedNext
	m.pinnedNext++
	m.zero(f)
	return f
}

func (m *Manager) zero(f FrameID) {
	for i := range m.ram[f] {
		m.ram[f][i] = 0
	}
}

// Frame returns the byte storage backing a data-bearing frame, for
// filling in swapped-in content or reading it back out during eviction.
func (m *Manager) Frame(f FrameID) *[kconfig.PageSize]byte {
	return &m.ram[f]
}

func (m *Manager) newPageTable() (FrameID, *PageTable) {
	f := m.allocPinnedFrame()
	pt := &PageTable{}
	m.pageTables[f] = pt
	return f, pt
}

func (m *Manager) newPageDirectory() (FrameID, *PageDirectory) {
	f := m.allocPinnedFrame()
	pd := &PageDirectory{}
	m.pageDirs[f] = pd
	return f, pd
}

// PageDirectoryAt returns the directory struct backing a frame
// previously returned by NewProcessAddressSpace or NewKernelAddressSpace.
func (m *Manager) PageDirectoryAt(f FrameID) *PageDirectory {
	return m.pageDirs[f]
}

// GetMemory implements the spec's get_memory: hand out a free frame from
// the pageable pool, evicting a victim via the configured Evictor once
// the pool is exhausted. entry is the page table entry that will be
// filled in to reference the returned frame; it is recorded so a future
// eviction of this same frame can clear the right PTE. It reports
// ErrNoFrameAvailable rather than halting when eviction has no candidate,
// mirroring HandleFault's ErrNullDereference/ErrAccessViolation so every
// task-fatal outcome in this package reaches the caller the same way.
func (m *Manager) GetMemory(vaddr uintptr, owner int32, entry *PTE) (FrameID, error) {
	m.lock.Acquire()
	defer m.lock.Release()

	if m.allocated < kconfig.PageablePages {
		idx := m.allocated
		m.allocated++
		frame := m.pageableBase + FrameID(idx)
		m.desc[idx] = FrameDescriptor{VAddr: vaddr, Frame: frame, Owner: owner, InUse: true, Entry: entry}
		m.zero(frame)
		return frame, nil
	}

	candidates := make([]int, 0, kconfig.PageablePages)
	for i := range m.desc {
		if m.desc[i].InUse && !m.desc[i].Pinned {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, ErrNoFrameAvailable
	}
	victim := m.evictor.PickVictim(candidates)
	d := &m.desc[victim]

	if d.Entry != nil && d.Entry.HasFlags(FlagDirty) {
		m.writeBack(d)
	}
	if d.Entry != nil {
		d.Entry.ClearFlags(FlagPresent)
	}

	d.VAddr, d.Owner, d.Entry = vaddr, owner, entry
	m.zero(d.Frame)
	return d.Frame, nil
}

// Pin marks frame as ineligible for eviction (or eligible again when
// pinned is false), used for
// frames whose content cannot be regenerated from the backing disk
// image (e.g. frames holding data never yet written back).
func (m *Manager) Pin(frame FrameID, pinned bool) {
	if frame < m.pageableBase {
		return
	}
	m.desc[frame-m.pageableBase].Pinned = pinned
}

// writeBack persists a dirty victim frame's swap slot. The default
// memory manager has no per-owner swap location of its own (the fault
// handler tracks that per task), so writeBack is a hook internal/boot
// wires up via SetWriteBack rather than something Manager can
// compute from a FrameDescriptor alone.
var writeBackHook func(d *FrameDescriptor, m *Manager)

// SetWriteBack installs the hook used to persist a dirty frame before
// it is reclaimed.
func SetWriteBack(f func(d *FrameDescriptor, m *Manager)) {
	writeBackHook = f
}

func (m *Manager) writeBack(d *FrameDescriptor) {
	if writeBackHook != nil {
		writeBackHook(d, m)
	}
}
