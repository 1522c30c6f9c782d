package fs

import "github.com/krihaa/minikernel/internal/kconfig"

// resizeInode grows or shrinks inode to newSize bytes, allocating or
// freeing direct data blocks as needed, per spec section 4.5's
// resize_inode. Block count uses ceil(newSize/BlockSize) -- the original
// system's "size/BLOCK_SIZE + 1" formula over-allocates by one block
// whenever size is an exact multiple of BlockSize; this is the open
// question decision to use the correct ceiling instead.
func (fsys *FS) resizeInode(inode *InMemInode, newSize uint32) error {
	blocksNeeded := int((newSize + kconfig.BlockSize - 1) / kconfig.BlockSize)
	if blocksNeeded > kconfig.InodeNDirect {
		blocksNeeded = kconfig.InodeNDirect
	}

	for slot := 0; slot < kconfig.InodeNDirect; slot++ {
		needed := slot < blocksNeeded
		allocated := inode.Disk.Direct[slot] != -1
		switch {
		case needed && !allocated:
			blk, ok := fsys.dataBmap.getFreeEntry(int(fsys.super.NDataBlks))
			if !ok {
				return ErrFull
			}
			inode.Disk.Direct[slot] = int16(blk)
		case !needed && allocated:
			fsys.dataBmap.freeBitmapEntry(int(inode.Disk.Direct[slot]))
			inode.Disk.Direct[slot] = -1
		}
	}

	inode.Disk.Size = newSize
	if err := fsys.persistBitmap(dataBitmapSector, &fsys.dataBmap); err != nil {
		return err
	}
	return fsys.persistInode(inode.InodeNum)
}

// readAt copies into buf starting at pos, clamped to the inode's current
// size, and returns the number of bytes transferred.
func (fsys *FS) readAt(inode *InMemInode, buf []byte, pos uint32) (int, error) {
	finish := pos + uint32(len(buf))
	if finish > inode.Disk.Size {
		finish = inode.Disk.Size
	}
	if pos >= finish {
		return 0, nil
	}

	n := 0
	for cur := pos; cur < finish; {
		blockIdx := int(cur / kconfig.BlockSize)
		blockStart := uint32(blockIdx) * kconfig.BlockSize
		lo := cur - blockStart
		hi := finish - blockStart
		if hi > kconfig.BlockSize {
			hi = kconfig.BlockSize
		}
		length := int(hi - lo)

		blk := inode.Disk.Direct[blockIdx]
		dst := buf[n : n+length]
		var err error
		if lo == 0 && length == kconfig.BlockSize {
			err = fsys.dev.ReadSector(idx2blk(blk), dst)
		} else {
			err = fsys.dev.ReadPart(idx2blk(blk), int(lo), length, dst)
		}
		if err != nil {
			return n, err
		}
		n += length
		cur += uint32(length)
	}
	return n, nil
}

// writeAt copies buf into the inode's data starting at pos, growing the
// inode (up to max_filesize) if the write extends past its current size.
func (fsys *FS) writeAt(inode *InMemInode, buf []byte, pos uint32) (int, error) {
	target := pos + uint32(len(buf))
	if target > uint32(maxFilesize) {
		target = uint32(maxFilesize)
	}
	if target <= pos {
		return 0, nil
	}
	if target > inode.Disk.Size {
		if err := fsys.resizeInode(inode, target); err != nil {
			return 0, err
		}
	}

	n := 0
	for cur := pos; cur < target; {
		blockIdx := int(cur / kconfig.BlockSize)
		blockStart := uint32(blockIdx) * kconfig.BlockSize
		lo := cur - blockStart
		hi := target - blockStart
		if hi > kconfig.BlockSize {
			hi = kconfig.BlockSize
		}
		length := int(hi - lo)

		blk := inode.Disk.Direct[blockIdx]
		src := buf[n : n+length]
		var err error
		if lo == 0 && length == kconfig.BlockSize {
			err = fsys.dev.WriteSector(idx2blk(blk), src)
		} else {
			err = fsys.dev.Modify(idx2blk(blk), int(lo), src, length)
		}
		if err != nil {
			return n, err
		}
		n += length
		cur += uint32(length)
	}
	return n, nil
}
