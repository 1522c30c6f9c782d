package blockdev

// MemDisk is a RAM-backed Device. It is what every test in this module
// and a hosted (non-gccgo) build of the kernel use in place of real
// hardware -- the same
// role the !gccgo cpuSwitch stub plays for the scheduler.
type MemDisk struct {
	sectors [][SectorSize]byte
}

// NewMemDisk returns a zeroed disk with the given number of sectors.
func NewMemDisk(numSectors int) *MemDisk {
	return &MemDisk{sectors: make([][SectorSize]byte, numSectors)}
}

func (m *MemDisk) grow(lba uint32) {
	for uint32(len(m.sectors)) <= lba {
		m.sectors = append(m.sectors, [SectorSize]byte{})
	}
}

// ReadSector reads sector lba into buf.
func (m *MemDisk) ReadSector(lba uint32, buf []byte) error {
	if len(buf) != SectorSize {
		return ErrBufferSize
	}
	m.grow(lba)
	copy(buf, m.sectors[lba][:])
	return nil
}

// WriteSector writes buf to sector lba.
func (m *MemDisk) WriteSector(lba uint32, buf []byte) error {
	if len(buf) != SectorSize {
		return ErrBufferSize
	}
	m.grow(lba)
	copy(m.sectors[lba][:], buf)
	return nil
}

// ReadPart reads length bytes at offset within sector lba.
func (m *MemDisk) ReadPart(lba uint32, offset, length int, buf []byte) error {
	return ReadPart(m, lba, offset, length, buf)
}

// Modify rewrites length bytes at offset within sector lba.
func (m *MemDisk) Modify(lba uint32, offset int, buf []byte, length int) error {
	return Modify(m, lba, offset, buf, length)
}

// NumSectors reports the disk's current size in sectors.
func (m *MemDisk) NumSectors() int {
	return len(m.sectors)
}
