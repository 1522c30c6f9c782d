// Package fs implements the custom on-disk filesystem of spec section
// 4.5: superblock, MSB-first bitmaps, 32-byte disk inodes, directory
// entries stored as ordinary file data, and a per-task open-file table.
// Layout and allocation are grounded on github.com/dmarro89/go-dav-os's
// fs/fat16/fat16.go (FAT-style lazy block allocation over a raw device,
// scratch-buffer reuse, little-endian on-disk structs); the inode/
// directory/name-resolution shape is grounded on jnwhiteh-minixfs and
// mit-pdos-biscuit's fs.go, which this teaching filesystem's design most
// resembles.
package fs

import (
	"encoding/binary"

	"github.com/krihaa/minikernel/internal/blockdev"
	"github.com/krihaa/minikernel/internal/diag"
	"github.com/krihaa/minikernel/internal/kconfig"
	"github.com/krihaa/minikernel/internal/sync2"
)

// SuperBlock is the persisted filesystem header of spec section 3.
type SuperBlock struct {
	NInodes     int32
	NDataBlks   int32
	MaxFilesize int32
	RootInode   int32
}

const superBlockSize = 16

func (s *SuperBlock) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(s.NInodes))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(s.NDataBlks))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(s.MaxFilesize))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(s.RootInode))
}

func (s *SuperBlock) decode(buf []byte) {
	s.NInodes = int32(binary.LittleEndian.Uint32(buf[0:4]))
	s.NDataBlks = int32(binary.LittleEndian.Uint32(buf[4:8]))
	s.MaxFilesize = int32(binary.LittleEndian.Uint32(buf[8:12]))
	s.RootInode = int32(binary.LittleEndian.Uint32(buf[12:16]))
}

const (
	inodeBitmapSector = kconfig.SuperBlockStart + 1
	dataBitmapSector  = kconfig.SuperBlockStart + 2
	inodeBlocksStart  = kconfig.SuperBlockStart + 3
	dataBlocksStart   = inodeBlocksStart + kconfig.InodeBlocks

	maxFilesize = kconfig.InodeNDirect * kconfig.BlockSize
)

func ino2blk(i int32) uint32 {
	return uint32(inodeBlocksStart) + uint32(i)/uint32(kconfig.InodeBlocksPerSector)
}

func idx2blk(k int16) uint32 {
	return uint32(dataBlocksStart) + uint32(k)
}

// FS is a mounted filesystem instance bound to one block device.
type FS struct {
	dev   blockdev.Device
	lock  *sync2.Lock
	super SuperBlock

	inodeBmap Bitmap
	dataBmap  Bitmap
	inodes    [kconfig.MaxInodes]InMemInode
}

// Mount reads the filesystem region on dev, reformatting via Mkfs if the
// persisted superblock does not match this build's layout constants, per
// spec section 4.5's fs_init. dataBlocks is the number of data blocks
// available past the reserved FS region -- a boot-time configuration
// value, not something probed from the device.
func Mount(dev blockdev.Device, dataBlocks int) (*FS, error) {
	fsys := &FS{dev: dev, lock: sync2.NewLock()}

	var sbBuf [superBlockSize]byte
	if err := dev.ReadPart(kconfig.SuperBlockStart, 0, superBlockSize, sbBuf[:]); err != nil {
		return nil, err
	}
	fsys.super.decode(sbBuf[:])

	if fsys.super.NInodes != kconfig.MaxInodes ||
		fsys.super.NDataBlks != int32(dataBlocks) ||
		fsys.super.MaxFilesize != int32(maxFilesize) {
		return Mkfs(dev, dataBlocks)
	}

	if err := fsys.loadBitmap(inodeBitmapSector, &fsys.inodeBmap); err != nil {
		return nil, err
	}
	if err := fsys.loadBitmap(dataBitmapSector, &fsys.dataBmap); err != nil {
		return nil, err
	}

	for i := 0; i < kconfig.MaxInodes; i++ {
		if !fsys.inodeBmap.test(i) {
			continue
		}
		inode := newFreeInode(int32(i))
		if err := fsys.readInode(int32(i), &inode.Disk); err != nil {
			return nil, err
		}
		if !fsys.validInode(&inode.Disk) {
			diag.Warn("fs: dropping corrupt inode %d at mount", i)
			fsys.inodeBmap.freeBitmapEntry(i)
			continue
		}
		fsys.inodes[i] = inode
	}

	return fsys, nil
}

func (fsys *FS) validInode(d *DiskInode) bool {
	if d.Size > uint32(maxFilesize) {
		return false
	}
	for _, blk := range d.Direct {
		if blk < 0 {
			continue
		}
		if int(blk) >= int(fsys.super.NDataBlks) || !fsys.dataBmap.test(int(blk)) {
			return false
		}
	}
	return true
}

// Mkfs reformats dev: zeroes both bitmaps, writes a fresh root directory
// and persists the superblock, per spec section 4.5's fs_mkfs.
func Mkfs(dev blockdev.Device, dataBlocks int) (*FS, error) {
	fsys := &FS{dev: dev, lock: sync2.NewLock()}
	fsys.super = SuperBlock{
		NInodes:     kconfig.MaxInodes,
		NDataBlks:   int32(dataBlocks),
		MaxFilesize: int32(maxFilesize),
	}

	if err := fsys.persistBitmap(inodeBitmapSector, &fsys.inodeBmap); err != nil {
		return nil, err
	}
	if err := fsys.persistBitmap(dataBitmapSector, &fsys.dataBmap); err != nil {
		return nil, err
	}

	root, err := fsys.createDirectory(-1)
	if err != nil {
		return nil, err
	}
	fsys.super.RootInode = root

	if err := fsys.persistSuperBlock(); err != nil {
		return nil, err
	}
	return fsys, nil
}

func (fsys *FS) persistSuperBlock() error {
	var buf [superBlockSize]byte
	fsys.super.encode(buf[:])
	return fsys.dev.Modify(kconfig.SuperBlockStart, 0, buf[:], superBlockSize)
}

// Bitmaps are 256 bytes, half a sector; they are persisted with
// ReadPart/Modify rather than ReadSector/WriteSector, which demand a
// buffer of exactly one full sector.
func (fsys *FS) loadBitmap(sector uint32, b *Bitmap) error {
	return fsys.dev.ReadPart(sector, 0, len(b), b[:])
}

func (fsys *FS) persistBitmap(sector uint32, b *Bitmap) error {
	return fsys.dev.Modify(sector, 0, b[:], len(b))
}

func (fsys *FS) readInode(num int32, d *DiskInode) error {
	var buf [diskInodeSize]byte
	offset := int(num%int32(kconfig.InodeBlocksPerSector)) * diskInodeSize
	if err := fsys.dev.ReadPart(ino2blk(num), offset, diskInodeSize, buf[:]); err != nil {
		return err
	}
	d.decode(buf[:])
	return nil
}

func (fsys *FS) persistInode(num int32) error {
	var buf [diskInodeSize]byte
	fsys.inodes[num].Disk.encode(buf[:])
	offset := int(num%int32(kconfig.InodeBlocksPerSector)) * diskInodeSize
	fsys.inodes[num].Dirty = false
	return fsys.dev.Modify(ino2blk(num), offset, buf[:], diskInodeSize)
}

// RootInode returns the inode number of the filesystem root.
func (fsys *FS) RootInode() int32 {
	return fsys.super.RootInode
}
