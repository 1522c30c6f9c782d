package fs

import (
	"encoding/binary"

	"github.com/krihaa/minikernel/internal/kconfig"
)

// InodeType distinguishes a regular file from a directory.
type InodeType uint8

const (
	TypeFile InodeType = iota
	TypeDir
)

// diskInodeSize is the on-disk encoding of DiskInode: 1 type byte, 1 pad
// byte, a 2-byte link count, a 4-byte size and InodeNDirect 2-byte block
// indices. It must stay 32 bytes -- kconfig.InodeBlocksPerSector assumes
// SectorSize/32 inodes pack per sector.
const diskInodeSize = 1 + 1 + 2 + 4 + kconfig.InodeNDirect*2

// DiskInode is the 32-byte persisted inode record of spec section 3.
type DiskInode struct {
	Type   InodeType
	NLinks int16
	Size   uint32
	Direct [kconfig.InodeNDirect]int16 // -1 means unallocated
}

func (d *DiskInode) encode(buf []byte) {
	buf[0] = byte(d.Type)
	buf[1] = 0
	binary.LittleEndian.PutUint16(buf[2:4], uint16(d.NLinks))
	binary.LittleEndian.PutUint32(buf[4:8], d.Size)
	for i, blk := range d.Direct {
		binary.LittleEndian.PutUint16(buf[8+2*i:10+2*i], uint16(blk))
	}
}

func (d *DiskInode) decode(buf []byte) {
	d.Type = InodeType(buf[0])
	d.NLinks = int16(binary.LittleEndian.Uint16(buf[2:4]))
	d.Size = binary.LittleEndian.Uint32(buf[4:8])
	for i := range d.Direct {
		d.Direct[i] = int16(binary.LittleEndian.Uint16(buf[8+2*i : 10+2*i]))
	}
}

// InMemInode is the in-core inode of spec section 3: the disk inode plus
// bookkeeping that never hits disk. Pos is shared by every open file
// descriptor referencing this inode, matching the open-file table's
// {mode, inode-index} shape, which carries no seek position of its own.
type InMemInode struct {
	Disk      DiskInode
	OpenCount int32
	Pos       uint32
	Dirty     bool
	InodeNum  int32
}

func newFreeInode(num int32) InMemInode {
	inode := InMemInode{InodeNum: num}
	for i := range inode.Disk.Direct {
		inode.Disk.Direct[i] = -1
	}
	return inode
}
